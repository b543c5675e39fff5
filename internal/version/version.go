// Package version exposes the build metadata stamped into the binary.
package version

import (
	"fmt"
	"runtime"
)

// Overridden at release time via ldflags:
//
//	-X github.com/dbpulse/dbpulse/internal/version.version=1.2.0
//	-X github.com/dbpulse/dbpulse/internal/version.commit=4f9c1e2
//	-X github.com/dbpulse/dbpulse/internal/version.buildDate=2026-08-29
var (
	version   = "1.0.0"
	commit    = "none"
	buildDate = "unknown"
)

// Info bundles the build metadata for structured output
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns the current build metadata
func Get() Info {
	return Info{
		Version:   version,
		Commit:    commit,
		BuildDate: buildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// SetBuildInfo overrides the stamped values. Release tooling and tests use
// this instead of ldflags.
func SetBuildInfo(v, c, date string) {
	version, commit, buildDate = v, c, date
}

// IsDevBuild reports whether the binary was built without release stamping
func IsDevBuild() bool {
	return commit == "none"
}

// GetVersionString returns the one-line version banner
func GetVersionString() string {
	if IsDevBuild() {
		return fmt.Sprintf("dbpulse %s (development build)", version)
	}
	return fmt.Sprintf("dbpulse %s (commit %s, built %s)", version, commit, buildDate)
}

// GetDetailedVersionString returns the multi-line version report
func GetDetailedVersionString() string {
	info := Get()
	return fmt.Sprintf(`dbpulse Version Information:
  Version:    %s
  Commit:     %s
  Build Date: %s
  Go Version: %s
  Platform:   %s`, info.Version, info.Commit, info.BuildDate, info.GoVersion, info.Platform)
}
