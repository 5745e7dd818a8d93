// Package main provides the hark CLI process entrypoint.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rbright/hark/internal/app"

	// Engine backends register themselves by name.
	_ "github.com/rbright/hark/internal/engine/reference"
	_ "github.com/rbright/hark/internal/engine/remote"
)

// main wires process signal handling to the application runner.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exitCode := app.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	os.Exit(exitCode)
}
