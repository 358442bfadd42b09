// Package main is the entry point for the lintv application.
package main

import (
	"os"

	"github.com/lintv/lintv/cmd/lintv/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
