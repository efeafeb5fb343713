// Command lantern imports, inspects, runs and compiles Darknet models.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lanternml/lantern/compile"
	"github.com/lanternml/lantern/darknet"
)

// CLI exit codes for standardized error reporting.
const (
	// ExitSuccess indicates the operation completed successfully.
	ExitSuccess = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError = 1

	// ExitBadConfig indicates a malformed layer-configuration file.
	ExitBadConfig = 2

	// ExitBadWeights indicates a malformed or mismatched weights file.
	ExitBadWeights = 3

	// ExitUnsupported indicates a layer type or compile target the tool
	// does not handle.
	ExitUnsupported = 4
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCodeFromError(err))
	}
}

// exitCodeFromError maps error types to exit codes.
func exitCodeFromError(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, darknet.ErrBadConfig):
		return ExitBadConfig
	case errors.Is(err, darknet.ErrBadWeights):
		return ExitBadWeights
	case errors.Is(err, darknet.ErrUnsupportedLayer),
		errors.Is(err, compile.ErrBadTarget),
		errors.Is(err, compile.ErrUnsupported):
		return ExitUnsupported
	default:
		return ExitGeneralError
	}
}
