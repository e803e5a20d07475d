// Package main provides the fwd command-line tool.
package main

import (
	"os"

	"github.com/leapstack-labs/fwd/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
