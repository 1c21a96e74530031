// Package main is the entry point for the ctb server.
package main

import (
	"fmt"
	"os"

	"ctb/cmd"
	_ "ctb/docs"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
