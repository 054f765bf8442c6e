// Command servermon watches MongoDB servers and logs every change in their
// reported state.
package main

import (
	"fmt"
	"os"
)

var version = "dev" // Set at build time using -ldflags

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error executing root command: %s\n", err)
		os.Exit(1)
	}
}
