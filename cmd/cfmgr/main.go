// Command cfmgr runs the D1/R2-style storage API server and is also its
// command-line client.
package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/marmos91/cfmgr/cmd/cfmgr/commands"
)

// Set with -ldflags "-X main.version=... -X main.commit=... -X main.date=...".
var (
	version = "dev"
	commit  = ""
	date    = "unknown"
)

func main() {
	commands.Version = version
	commands.Commit = revision()
	commands.Date = date

	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// revision falls back to the VCS stamp of "go install" builds.
func revision() string {
	if commit != "" {
		return commit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" {
				return s.Value
			}
		}
	}
	return "none"
}
