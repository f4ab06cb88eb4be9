// SPDX-License-Identifier: MIT
package log

import (
	"bytes"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
		ok   bool
	}{
		{"debug", LevelDebug, true},
		{"INFO", LevelInfo, true},
		{"Warning", LevelWarn, true},
		{"warn", LevelWarn, true},
		{"error", LevelError, true},
		{"fatal", LevelFatal, true},
		{"loud", LevelInfo, false},
		{"", LevelInfo, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseLevel(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(LevelInfo)
	})

	SetLevel(LevelWarn)
	assert.Equal(t, LevelWarn, GetLevel())

	Infof("hidden %d", 1)
	Debug("hidden")
	assert.Empty(t, buf.String())

	Warnf("shown %d", 2)
	Error("also shown")
	assert.Contains(t, buf.String(), "shown 2")
	assert.Contains(t, buf.String(), "also shown")
}

func TestComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(os.Stderr) })
	SetLevel(LevelInfo)

	Component("board").Info("clock ok", "sysclk", 168000000)
	out := buf.String()
	assert.Contains(t, out, "component=board")
	assert.Contains(t, out, "sysclk=168000000")
}

func TestSetOutputRedirectsExistingComponents(t *testing.T) {
	comp := Component("engine")

	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(os.Stderr) })
	SetLevel(LevelInfo)

	comp.Info("after swap")
	assert.Contains(t, buf.String(), "after swap")
	assert.Contains(t, buf.String(), "component=engine")
}

func TestSetOutputWhileLogging(t *testing.T) {
	t.Cleanup(func() { SetOutput(os.Stderr) })
	SetLevel(LevelInfo)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				Infof("line %d", i)
			}
		}()
	}
	for range 50 {
		SetOutput(io.Discard)
	}
	wg.Wait()
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "FATAL", LevelFatal.String())
	assert.Equal(t, "UNKNOWN", LogLevel(42).String())
}
