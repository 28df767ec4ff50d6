// Command ragstore is the entry point for the document storage and hybrid
// search service. It provides a CLI interface (via Cobra) and an optional
// HTTP server exposing the REST API.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/ragstore-go/cmd/ragstore/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
