// Command netsim compiles, validates and simulates hierarchical netlists.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/netsim/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err == nil {
		return
	}
	// Commands report their own ExitErrors; anything else (flag parsing,
	// unknown commands) still needs printing.
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
