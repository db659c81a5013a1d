// Package main provides the entry point for the symdex CLI.
package main

import (
	"os"

	"github.com/symdex-dev/symdex/cmd/symdex/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
