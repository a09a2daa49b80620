// Command elixir is the cross-referencer CLI: it drives the Update Coordinator over a
// version-control store, serves the Query Interface locally, and reports on the database's
// own invariants.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
