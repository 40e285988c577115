package main

import (
	"fmt"
	"os"

	"github.com/smira/commander"
)

// Run runs a single command starting from the root command with args.
func Run(cmd *commander.Command, cmdArgs []string) (returnCode int) {
	flags, args, err := cmd.ParseFlags(cmdArgs)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		return 2
	}

	if err := initContext(flags); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		return 1
	}

	err = cmd.Dispatch(args)
	if err != nil {
		if err == commander.ErrCommandError {
			return 2
		}
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		return 1
	}
	return 0
}
