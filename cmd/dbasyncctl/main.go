// Command dbasyncctl is a small demonstrator CLI over the dbasync module:
// it opens a Schema from a TOML config, then runs one diagnostic or data
// operation against it per invocation.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		exitOnError(err)
	}
}

func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
