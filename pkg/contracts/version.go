// Package contracts holds the types shared between the condor finder and
// its clients: build information here, HTTP bodies in api/v1 and
// WebSocket messages in events.
package contracts

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/xingfanxia/iron-condor-combo-finder/internal/config"
)

const (
	// Version is the release of the condor finder
	Version = config.AppVersion

	// APIVersion is the version of the HTTP and WebSocket contracts
	APIVersion = "v1"
)

// Stamped by build.go through -ldflags -X. When left unset they fall back
// to the VCS settings the go toolchain embeds.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// VersionInfo is the body of GET /api/version
type VersionInfo struct {
	Name         string `json:"name"`
	Version      string `json:"version"`
	BuildTime    string `json:"build_time"`
	GitCommit    string `json:"git_commit"`
	Modified     bool   `json:"modified,omitempty"`
	GoVersion    string `json:"go_version"`
	OS           string `json:"os"`
	Architecture string `json:"architecture"`
	APIVersion   string `json:"api_version"`
}

// GetVersionInfo describes the running binary
func GetVersionInfo() VersionInfo {
	info := VersionInfo{
		Name:         config.AppName,
		Version:      Version,
		BuildTime:    BuildTime,
		GitCommit:    GitCommit,
		GoVersion:    runtime.Version(),
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		APIVersion:   APIVersion,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		applyVCS(&info, bi.Settings)
	}
	return info
}

func applyVCS(info *VersionInfo, settings []debug.BuildSetting) {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if info.GitCommit == "unknown" && s.Value != "" {
				info.GitCommit = s.Value
				if len(info.GitCommit) > 12 {
					info.GitCommit = info.GitCommit[:12]
				}
			}
		case "vcs.time":
			if info.BuildTime == "unknown" && s.Value != "" {
				info.BuildTime = s.Value
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
}

// GetFullVersionString is the one-line output of the version command
func GetFullVersionString() string {
	info := GetVersionInfo()
	commit := info.GitCommit
	if info.Modified {
		commit += "-dirty"
	}
	return fmt.Sprintf("%s v%s (api %s, commit %s, built %s, %s %s/%s)",
		info.Name, info.Version, info.APIVersion, commit, info.BuildTime,
		info.GoVersion, info.OS, info.Architecture)
}
