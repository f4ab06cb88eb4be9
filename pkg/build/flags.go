// SPDX-License-Identifier: MIT
//
// Package build carries the metadata embedded at link time: name, build
// timestamp, commit and version, plus the platform and toolchain the
// binary was built for. Bring-up prints it as the startup banner.
//
//	go build -ldflags "-X streamcore/pkg/build.buildName=streamcore \
//	  -X streamcore/pkg/build.buildVersion=0.3.0 ..."
package build

import (
	"errors"
	"fmt"
	"runtime"
)

// Info is the build metadata of the running binary.
type Info struct {
	Name      string
	Time      string
	Commit    string
	Version   string
	Platform  string
	GoVersion string
}

// Populated by -ldflags. Left empty in development builds.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildInfo    = Info{
		Name:      "streamcore",
		Time:      "unknown",
		Commit:    "unknown",
		Version:   "dev",
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		GoVersion: runtime.Version(),
	}
)

// ErrMissing is wrapped by Initialize for every absent flag.
var ErrMissing = errors.New("build flag is required")

// Initialize copies the ldflags values into the build info. It returns an
// error naming the first missing flag and leaves the defaults in place.
func Initialize() error {
	for _, f := range []struct{ name, value string }{
		{"BuildName", buildName},
		{"BuildTime", buildTime},
		{"BuildCommit", buildCommit},
		{"BuildVersion", buildVersion},
	} {
		if f.value == "" {
			return fmt.Errorf("%s: %w", f.name, ErrMissing)
		}
	}

	buildInfo.Name = buildName
	buildInfo.Time = buildTime
	buildInfo.Commit = buildCommit
	buildInfo.Version = buildVersion
	return nil
}

// Get returns the current build information.
func Get() Info {
	return buildInfo
}

// Banner returns the startup banner lines.
func (i Info) Banner() []string {
	return []string{
		fmt.Sprintf("%s %s (%s)", i.Name, i.Version, i.Commit),
		fmt.Sprintf("Platform %s", i.Platform),
		fmt.Sprintf("Built on %s", i.Time),
		i.GoVersion,
	}
}
