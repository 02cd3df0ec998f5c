// Package meta carries build information stamped into the svdrp binary.
package meta

import (
	"fmt"
	"runtime"
)

// Info describes the build an svdrp binary came from.
type Info struct {
	Version   string
	Build     string
	Branch    string
	BuildTime string
	Platform  string
	GoVersion string
	GoTag     string
}

// Filled in with -ldflags "-X github.com/luma/svdrp/internal/meta.Version=..."
var (
	// Version is the release, "dev" for local builds
	Version = "dev"

	// Build is the git sha
	Build string

	// Branch is the git branch
	Branch string

	// BuildTimeUTC is year/month/day hour:min:sec
	BuildTimeUTC string

	// GoTag lists the build tags
	GoTag string

	platform = fmt.Sprintf("%s %s", runtime.GOOS, runtime.GOARCH)
)

func GetInfo() Info {
	return Info{
		GoVersion: runtime.Version(),
		Version:   Version,
		Build:     Build,
		Branch:    Branch,
		BuildTime: BuildTimeUTC,
		GoTag:     GoTag,
		Platform:  platform,
	}
}

// String is the version followed by the git sha, if known.
func (i Info) String() string {
	if i.Build == "" {
		return i.Version
	}

	return fmt.Sprintf("%s (%s)", i.Version, i.Build)
}
