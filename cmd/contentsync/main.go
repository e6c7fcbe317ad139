// Package main provides the entry point for the contentsync CLI tool.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/agentstation/contentsync/internal/cmd"
	"github.com/agentstation/contentsync/pkg/logging"
)

func main() {
	// optional, local development convenience
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		logging.Err(err).Msg("Sync failed")
		os.Exit(1)
	}
}
