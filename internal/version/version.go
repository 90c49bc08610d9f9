// Package version reports build metadata for the CLI and the API.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

var (
	// Version is the application version, set via ldflags during build.
	Version = "dev"
	// GitCommit is the git commit hash, set via ldflags during build.
	GitCommit = "unknown"
	// BuildDate is the build timestamp, set via ldflags during build.
	BuildDate = "unknown"
	// BuildID is the build identifier, set via ldflags during build.
	BuildID = "unknown"
)

// Info contains version and build metadata.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	BuildID   string `json:"build_id"`
	GoVersion string `json:"go_version"`
	Compiler  string `json:"compiler"`
	Platform  string `json:"platform"`
	Modified  bool   `json:"modified"`
}

var (
	buildOnce sync.Once
	buildVCS  map[string]string
)

// vcsSetting returns a vcs.* setting embedded by the Go toolchain, used when
// the ldflags were not set (go install, go run).
func vcsSetting(key string) string {
	buildOnce.Do(func() {
		buildVCS = make(map[string]string)
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		for _, s := range info.Settings {
			buildVCS[s.Key] = s.Value
		}
		if v := info.Main.Version; v != "" && v != "(devel)" {
			buildVCS["main.version"] = v
		}
	})
	return buildVCS[key]
}

func orBuild(value, unset, key string) string {
	if value != unset {
		return value
	}
	if v := vcsSetting(key); v != "" {
		return v
	}
	return value
}

// Get returns version and build information.
func Get() Info {
	return Info{
		Version:   orBuild(Version, "dev", "main.version"),
		GitCommit: orBuild(GitCommit, "unknown", "vcs.revision"),
		BuildDate: orBuild(BuildDate, "unknown", "vcs.time"),
		BuildID:   BuildID,
		GoVersion: runtime.Version(),
		Compiler:  runtime.Compiler,
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
		Modified:  vcsSetting("vcs.modified") == "true",
	}
}

// String returns the application version string.
func String() string {
	return Get().Version
}
