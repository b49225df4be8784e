package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"platform-fighter/server/internal/app"
	"platform-fighter/server/internal/config"
	"platform-fighter/server/internal/telemetry"
)

func main() {
	logger := telemetry.WrapLogger(log.Default())
	cfg, err := config.Load(logger, os.Args[1:]...)
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, cfg, logger); err != nil {
		log.Fatalf("%v", err)
	}
}
