// Package main provides the entry point for TomSim.
// TomSim is a cycle-accurate simulator of Tomasulo's algorithm with a
// reorder buffer and speculative execution.
//
// For the full CLI, use: go run ./cmd/tomsim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("TomSim - Tomasulo Algorithm Simulator")
	fmt.Println("")
	fmt.Println("Usage: tomsim [options] <program.asm>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -config      Path to timing configuration JSON file")
	fmt.Println("  -predictor   Branch predictor: not-taken or bimodal")
	fmt.Println("  -cache       Model a data cache on loads and stores")
	fmt.Println("  -trace       Log every pipeline event")
	fmt.Println("  -v           Verbose output")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/tomsim' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/tomsim' instead.")
	}
}
