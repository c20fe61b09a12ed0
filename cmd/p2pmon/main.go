// Command p2pmon collects peer-to-peer marketplace advertisements, derives price
// history snapshots, and serves the reporting API.
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
