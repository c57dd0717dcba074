// Package version reports build information for ecoroute.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set with -ldflags "-X github.com/NERVsystems/ecoroute/pkg/version.BuildVersion=..."
var (
	BuildVersion = "dev"
	BuildCommit  = ""
	BuildDate    = ""
)

// Info returns the build version, commit, date and Go version. Commit and
// date fall back to the VCS stamp embedded by the Go toolchain.
func Info() map[string]string {
	commit, date := BuildCommit, BuildDate
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if commit == "" {
					commit = s.Value
				}
			case "vcs.time":
				if date == "" {
					date = s.Value
				}
			}
		}
	}
	if commit == "" {
		commit = "unknown"
	}
	if date == "" {
		date = "unknown"
	}

	return map[string]string{
		"version":    BuildVersion,
		"commit":     commit,
		"build_date": date,
		"go_version": runtime.Version(),
	}
}

// String formats Info for -version output.
func String() string {
	info := Info()
	return fmt.Sprintf("ecoroute %s (commit %s, built %s, %s)",
		info["version"], info["commit"], info["build_date"], info["go_version"])
}
