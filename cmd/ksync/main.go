// Package main provides the entry point for the ksync CLI.
package main

import (
	"os"

	"github.com/markdave123-py/ksync/cmd/ksync/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
