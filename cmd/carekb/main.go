// Package main provides the entry point for the carekb CLI.
package main

import (
	"os"

	"github.com/carekb/carekb/cmd/carekb/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
