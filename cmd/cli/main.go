// Package main is the entry point for the printsmart CLI.
// The CLI is the terminal tool for interacting with the printsmart API.
package main

import (
	"os"

	"printsmart/cmd/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
