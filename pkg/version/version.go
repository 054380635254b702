// Package version reports the curia build.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set with -ldflags "-X github.com/curia-rag/curia/pkg/version.Version=v0.3.0 ...".
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// BuildInfo is the JSON form printed by `curia version --json`.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
	Modified  bool   `json:"modified,omitempty"`
}

// GetInfo returns the build information. Binaries built with `go install`
// carry no ldflags; their commit and date come from the embedded VCS stamp.
func GetInfo() BuildInfo {
	info := BuildInfo{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		applyVCS(&info, bi.Settings)
	}
	return info
}

func applyVCS(info *BuildInfo, settings []debug.BuildSetting) {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "unknown" && s.Value != "" {
				info.Commit = s.Value
				if len(info.Commit) > 12 {
					info.Commit = info.Commit[:12]
				}
			}
		case "vcs.time":
			if info.Date == "unknown" && s.Value != "" {
				info.Date = s.Value
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
}

// String returns the one-line version banner.
func String() string {
	info := GetInfo()
	return fmt.Sprintf("curia %s (commit: %s, built: %s, go: %s)",
		info.Version, info.Commit, info.Date, info.GoVersion)
}

// Short returns just the version.
func Short() string {
	return Version
}

// UserAgent identifies curia in HTTP requests to Ollama.
func UserAgent() string {
	return "curia/" + Version
}
