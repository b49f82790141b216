package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vadimbarashkov/shorturl/internal/app"
	"github.com/vadimbarashkov/shorturl/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := run(ctx)
	cancel()

	if err != nil {
		fmt.Fprintf(os.Stderr, "shorturl: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return err
	}

	logger, err := app.NewLogger(cfg)
	if err != nil {
		return err
	}

	return app.Run(ctx, cfg, logger)
}
