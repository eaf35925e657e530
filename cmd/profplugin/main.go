// Package main provides the profplugin binary.
package main

import (
	"fmt"
	"os"

	"github.com/coral-mesh/profplugin/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
