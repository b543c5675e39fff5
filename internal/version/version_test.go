package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetDefaults(t *testing.T) {
	info := Get()

	assert.Equal(t, version, info.Version)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
}

func TestSetBuildInfo(t *testing.T) {
	prev := Get()
	defer SetBuildInfo(prev.Version, prev.Commit, prev.BuildDate)

	SetBuildInfo("2.1.0", "4f9c1e2", "2026-08-29")

	assert.False(t, IsDevBuild())
	assert.Equal(t, "dbpulse 2.1.0 (commit 4f9c1e2, built 2026-08-29)", GetVersionString())

	detailed := GetDetailedVersionString()
	assert.Contains(t, detailed, "2.1.0")
	assert.Contains(t, detailed, "4f9c1e2")
}

func TestDevBuildBanner(t *testing.T) {
	prev := Get()
	defer SetBuildInfo(prev.Version, prev.Commit, prev.BuildDate)

	SetBuildInfo("1.0.0", "none", "unknown")

	assert.True(t, IsDevBuild())
	assert.Equal(t, "dbpulse 1.0.0 (development build)", GetVersionString())
}
