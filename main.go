// Package main provides the entry point for mmixsim.
// mmixsim is an MMIX simulator with a command-line debugger.
//
// For the full CLI, use: go run ./cmd/mmixsim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("mmixsim - MMIX simulator and debugger")
	fmt.Println("Translation and cache statistics built on Akita")
	fmt.Println("")
	fmt.Println("Usage: mmixsim <command> [options] <program>")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  run      Run a program until it halts")
	fmt.Println("  debug    Debug a program interactively")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/mmixsim --help' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/mmixsim' instead.")
	}
}
