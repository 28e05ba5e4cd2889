package cmd

import (
	"fmt"
	"runtime"
)

// Version information injected at build time via ldflags.
var (
	Version   = "development"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// runVersion prints build information.
func runVersion() {
	fmt.Printf("minairo %s\n", Version)
	fmt.Printf("  build time: %s\n", BuildTime)
	fmt.Printf("  commit:     %s\n", GitCommit)
	fmt.Printf("  go:         %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
