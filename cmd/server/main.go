// Package main is the entry point for the cloudify-auth server.
//
// main stays minimal: build the logger, load configuration, hand both to the
// server package. Everything else — store selection, token services, routes —
// is wired in internal/server.
package main

import (
	"log/slog"
	"os"

	"github.com/shaily-20/cloudify-auth/internal/config"
	"github.com/shaily-20/cloudify-auth/internal/server"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Load reads .env (if present) and the environment, and fails fast on a
	// missing JWT_SECRET — better a refused start than tokens signed with "".
	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until the server is shut down (Ctrl+C or SIGTERM).
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
