// Package main - modgen
// Emits the built-in demo wasm module to a file so the server has
// something to render out of the box.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/waynr/wasm-renderer/internal/wasmbin"
)

func main() {
	out := flag.String("o", "demo.wasm", "Output path for the demo module")
	flag.Parse()

	module := wasmbin.DemoModule()
	if err := os.WriteFile(*out, module, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "modgen: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %d bytes to %s\n", len(module), *out)
}
