// Command marty is the CLI entry point.
package main

import (
	"os"

	"github.com/marty-build/marty/internal/cliapp"
	"github.com/marty-build/marty/internal/logging"
)

func main() {
	app := cliapp.New()

	if err := app.Run(os.Args); err != nil {
		logging.Logger().WithError(err).Error("marty failed")
		os.Exit(1)
	}
}
