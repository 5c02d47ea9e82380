package httpclient

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Release builds stamp the revision and date at link time:
//
//	go build -ldflags "\
//	  -X github.com/romanperesypkin/http-client.revision=$(git rev-parse HEAD) \
//	  -X github.com/romanperesypkin/http-client.buildDate=$(date -u +%Y-%m-%dT%H:%M:%SZ)" \
//	  ./cmd/httpclient
//
// Plain builds fall back to the VCS settings the go command embeds.
var (
	// Version is the library release.
	Version = "0.3.0"

	revision  string
	buildDate string
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version   string `json:"version"`
	Revision  string `json:"revision"`
	BuildDate string `json:"build_date"`
	Modified  bool   `json:"modified"`
	GoVersion string `json:"go_version"`
}

// ReadBuildInfo merges linker-stamped values with the embedded VCS stamp.
func ReadBuildInfo() BuildInfo {
	info := BuildInfo{
		Version:   Version,
		Revision:  revision,
		BuildDate: buildDate,
		GoVersion: runtime.Version(),
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if info.Revision == "" {
					info.Revision = s.Value
				}
			case "vcs.time":
				if info.BuildDate == "" {
					info.BuildDate = s.Value
				}
			case "vcs.modified":
				info.Modified = s.Value == "true"
			}
		}
	}

	if info.Revision == "" {
		info.Revision = "unknown"
	}
	if info.BuildDate == "" {
		info.BuildDate = "unknown"
	}
	return info
}

func (b BuildInfo) String() string {
	rev := b.Revision
	if len(rev) > 12 {
		rev = rev[:12]
	}
	if b.Modified {
		rev += "-dirty"
	}
	return fmt.Sprintf("http-client v%s (%s, built %s, %s)", b.Version, rev, b.BuildDate, b.GoVersion)
}

// UserAgent is the User-Agent sent when a request sets none.
func UserAgent() string {
	return "http-client/" + Version
}
