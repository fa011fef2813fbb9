// Package version exposes build metadata injected via ldflags.
package version

import "runtime"

// Name identifies the service in /version responses and startup logs.
const Name = "counter-app-sphere"

// Build information, set with -ldflags "-X .../version.Version=..." at build time.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

type Info struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

func Get() Info {
	return Info{
		Name:      Name,
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
}

// UserAgent returns the identifier the reference client sends when dialing.
func UserAgent() string {
	return Name + "/" + Version
}
