// Command masomo-shell serves the console screens over HTTP on the local machine.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/dig"

	echoshell "github.com/trezcool/masomo-console/apps/shell/echo"
	"github.com/trezcool/masomo-console/core"
)

type runParams struct {
	dig.In
	Conf         *core.Config
	Server       *echoshell.Server
	Logger       core.Logger
	CloseStorage func() error `name:"closeStorage"`
}

func main() {
	must(newContainer().Invoke(func(p runParams) {
		p.Logger.Info(fmt.Sprintf("Shell initializing : version %q", p.Conf.Build))
		defer func() {
			if err := p.CloseStorage(); err != nil {
				p.Logger.Error("closing storage", err)
			}
		}()
		defer p.Logger.Info("Shell stopped")

		serverErrors := make(chan error, 1)
		go func() {
			p.Logger.Info("Shell listening on " + p.Conf.Shell.Address)
			serverErrors <- p.Server.Start()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			if err != nil {
				p.Logger.Error(fmt.Sprintf("server error: %v", err), err)
			}

		case sig := <-shutdown:
			p.Logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

			// give outstanding requests a deadline for completion
			ctx, cancel := context.WithTimeout(context.Background(), p.Conf.Shell.ShutdownTimeout)
			defer cancel()
			if err := p.Server.Stop(ctx); err != nil {
				p.Logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
			}
		}
	}))
}
