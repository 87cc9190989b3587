// Command mttbar reconstructs the ttbar invariant mass of semileptonic
// events and serves the stored results.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "mttbar:", err)
		os.Exit(1)
	}
}
