// Package main provides the entry point for the nbsretrieve CLI.
package main

import (
	"os"

	"github.com/WRI-Indonesia/nbs-llm-sub000/cmd/nbsretrieve/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
