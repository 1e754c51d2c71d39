// Package main provides the entry point for the hostd CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/felixgeelhaar/osagent/interfaces/cli"
)

func main() {
	app := cli.New()

	if err := app.Execute(context.Background()); err != nil {
		// A failed run has already been reported on stdout.
		if !errors.Is(err, cli.ErrRunFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
