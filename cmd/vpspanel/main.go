// Command vpspanel runs the VPS panel API and its maintenance tasks.
//
//	vpspanel migrate
//	vpspanel seed
//	vpspanel account create --email ops@example.com --username ops --role support
//	VPSPANEL_SIGNING_KEY=... vpspanel serve
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "vpspanel:", err)
		os.Exit(1)
	}
}
