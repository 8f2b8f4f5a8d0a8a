// Command vectorcorectl is the operator CLI for vectorcore: a thin
// Cobra front end that calls the core's Go APIs directly against a
// configured object store. It speaks no HTTP and no S3 Vectors wire
// envelope; it exists for operators driving the core from a shell or a
// script, not for application clients.
package main

import (
	"fmt"
	"os"

	"github.com/dreamware/vectorcore/cmd/vectorcorectl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
