package main

import (
	"errors"
	"fmt"
	"os"

	"apimapper/internal/app"
	"apimapper/internal/logging"
)

// main is the entry point of the application.
func main() {
	runner := app.NewAppRunner()

	err := runner.Run(os.Args[1:])
	if err != nil {
		if logging.GetLevel() < logging.Error {
			logging.SetLevel(logging.Error)
		}
		logging.Logf(logging.Error, "Application execution failed: %v", err)
		if errors.Is(err, app.ErrUsage) || errors.Is(err, app.ErrConfigNotFound) || errors.Is(err, app.ErrMissingArgs) {
			fmt.Fprintln(os.Stderr, "")
			runner.Usage(os.Stderr)
		}
		logging.Sync()
		os.Exit(1)
	}

	logging.Sync()
}
