// Command masomo is the console front end of the Masomo school system.
package main

import (
	"fmt"
	"os"

	"go.uber.org/dig"

	"github.com/trezcool/masomo-console/core"
)

type runParams struct {
	dig.In
	CLI          *commandLine
	Logger       core.Logger
	CloseStorage func() error `name:"closeStorage"`
}

func main() {
	code := 0
	must(newContainer().Invoke(func(p runParams) {
		defer func() {
			if err := p.CloseStorage(); err != nil {
				p.Logger.Warn("closing storage", err)
			}
		}()
		if err := p.CLI.run(os.Args); err != nil {
			if err != errHelp {
				fmt.Fprintf(os.Stderr, "error: %s\n", err)
			}
			code = 1
		}
	}))
	os.Exit(code)
}
