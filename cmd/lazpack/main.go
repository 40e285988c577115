// Command lazpack compresses LAS point files into chunked containers and
// back.
package main

import (
	"os"
)

// Version is filled in at link time.
var Version string

func main() {
	if Version == "" {
		Version = "unknown"
	}

	os.Exit(Run(RootCommand(), os.Args[1:]))
}
