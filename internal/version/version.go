// Package version carries build metadata stamped in with -ldflags.
package version

import (
	"fmt"
	"log/slog"
	"runtime"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func String() string {
	return fmt.Sprintf("hark %s (commit=%s, date=%s, go=%s)", Version, Commit, Date, runtime.Version())
}

// Attr groups the build metadata for structured logs.
func Attr() slog.Attr {
	return slog.Group("build",
		slog.String("version", Version),
		slog.String("commit", Commit),
		slog.String("go", runtime.Version()),
	)
}
