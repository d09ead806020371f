// Command lockdown checks signatures of the structural runtime type layer,
// records verdicts and runs manager scenarios.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/lockdown/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "lockdown: %v\n", err)
	}
	os.Exit(cli.GetExitCode(err))
}
