// Command blobctl is a thin CLI front-end over blobkit's back-ends,
// for operators who want to upload, download, remove, or list objects
// without standing up a server around the library.
package main

import (
	"fmt"
	"os"

	"github.com/oio-go/blobkit/cmd/blobctl/commands"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.Version = version
	commands.Commit = commit
	commands.Date = date

	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
