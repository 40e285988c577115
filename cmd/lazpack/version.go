package main

import (
	"fmt"

	"github.com/smira/commander"
	"github.com/smira/flag"
)

func lazpackVersion(cmd *commander.Command, args []string) error {
	fmt.Printf("lazpack version: %s\n", Version)
	return nil
}

func makeCmdVersion() *commander.Command {
	return &commander.Command{
		Run:       lazpackVersion,
		UsageLine: "version",
		Short:     "display version",
		Long: `
Shows lazpack version.

ex:
  $ lazpack version
`,
		Flag: *flag.NewFlagSet("lazpack-version", flag.ExitOnError),
	}
}
