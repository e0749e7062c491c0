// Command gglsbl queries a gglsbl-rest service for its status and for
// safe browsing lookups of URLs.
package main

import (
	"fmt"
	"os"

	"evalgo.org/gglsbl/internal/commands"
	"evalgo.org/gglsbl/internal/version"
)

// Build information, set with -ldflags "-X main.Version=...".
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// main exits 1 when the command fails, including on configuration errors,
// after printing the error once.
func main() {
	version.Version = Version
	version.BuildTime = BuildTime
	version.GitCommit = GitCommit

	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
