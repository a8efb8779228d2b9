// Command udfview mounts a UDF-formatted optical image (DVD-Video, Blu-ray,
// or any ECMA-167 volume) and lets you inspect, extract from, and
// fingerprint it without a loopback mount.
package main

import (
	"fmt"
	"os"
)

// version is overwritten at release build time via -ldflags, the same
// convention the report tool this CLI replaces used.
var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
