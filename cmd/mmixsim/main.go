// Package main provides the entry point for mmixsim, an MMIX simulator
// with a command-line debugger.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
