// Command rp runs the pull request review pipeline. Each subcommand is
// one pipeline stage, so stages scale and fail independently while
// sharing the same configuration and event bus.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
