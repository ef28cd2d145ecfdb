package main

import (
	"bufio"
	"context"
	"log"
	"os"

	"loan-manager/internal/adapters/cli"
	"loan-manager/internal/adapters/repl"
	"loan-manager/internal/bootstrap"
	"loan-manager/internal/config"
	"loan-manager/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("config: DATABASE_URL is required")
	}
	// Keep stdout for the user; logs go to stderr.
	logger := observability.NewLogger(os.Stderr, observability.LogConfig{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx := context.Background()
	rt, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}

	if len(os.Args) > 1 {
		err = cli.Run(ctx, rt.Service, os.Args[1:], os.Stdout)
	} else {
		err = repl.Run(ctx, rt.Service, bufio.NewReader(os.Stdin), os.Stdout)
	}
	_ = rt.Close()
	if err != nil {
		log.Fatal(err)
	}
}
