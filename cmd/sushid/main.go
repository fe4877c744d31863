// Command sushid runs the audio engine control server and its tools.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/sushid/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
