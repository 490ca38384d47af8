// Command federation runs the federation core: the shared inbox, the
// dispatcher, and the outbound send manager, wired together from
// internal/config.
package main

import (
	"fmt"
	"os"

	_ "go.uber.org/automaxprocs"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
