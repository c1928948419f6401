// Command rowsharectl runs row-share maintenance tasks against the
// configured store: retention sweeps, bulk imports, table listings and
// migrations.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
