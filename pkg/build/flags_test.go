// SPDX-License-Identifier: MIT
package build

import (
	"os"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var origInfo Info

func TestMain(m *testing.M) {
	origInfo = buildInfo
	exitCode := m.Run()
	buildInfo = origInfo
	os.Exit(exitCode)
}

func setFlags(name, tm, commit, version string) {
	buildName, buildTime, buildCommit, buildVersion = name, tm, commit, version
}

func TestInitialize(t *testing.T) {
	tests := []struct {
		name        string
		buildName   string
		buildTime   string
		buildCommit string
		buildVer    string
		wantErrMsg  string
	}{
		{"Missing BuildName", "", "2025-04-13", "abcdef123", "v1.0.0", "BuildName: build flag is required"},
		{"Missing BuildTime", "testapp", "", "abcdef123", "v1.0.0", "BuildTime: build flag is required"},
		{"Missing BuildCommit", "testapp", "2025-04-13", "", "v1.0.0", "BuildCommit: build flag is required"},
		{"Missing BuildVersion", "testapp", "2025-04-13", "abcdef123", "", "BuildVersion: build flag is required"},
		{"Success Case", "testapp", "2025-04-13", "abcdef123", "v1.0.0", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buildInfo = origInfo
			setFlags(tt.buildName, tt.buildTime, tt.buildCommit, tt.buildVer)
			t.Cleanup(func() { setFlags("", "", "", "") })

			err := Initialize()

			if tt.wantErrMsg != "" {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrMissing)
				assert.EqualError(t, err, tt.wantErrMsg)
				assert.Equal(t, origInfo, Get(), "defaults must survive a failed initialize")
				return
			}

			require.NoError(t, err)
			info := Get()
			assert.Equal(t, tt.buildName, info.Name)
			assert.Equal(t, tt.buildTime, info.Time)
			assert.Equal(t, tt.buildCommit, info.Commit)
			assert.Equal(t, tt.buildVer, info.Version)
		})
	}
}

func TestDefaults(t *testing.T) {
	info := origInfo
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
	assert.Equal(t, runtime.Version(), info.GoVersion)
}

func TestBanner(t *testing.T) {
	info := Info{
		Name:      "testapp",
		Time:      "2025-04-13",
		Commit:    "abcdef123",
		Version:   "v1.0.0",
		Platform:  "linux/arm64",
		GoVersion: "go1.24.1",
	}
	assert.Equal(t, []string{
		"testapp v1.0.0 (abcdef123)",
		"Platform linux/arm64",
		"Built on 2025-04-13",
		"go1.24.1",
	}, info.Banner())
}
