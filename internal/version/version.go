// Package version carries build metadata stamped in via ldflags.
package version

import "fmt"

var (
	Version = "dev"
	Commit  = ""
)

func GetInfo() string {
	if Commit == "" {
		return Version
	}
	return fmt.Sprintf("%s (%s)", Version, Commit)
}
