package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"paperfx/internal/app"
	"paperfx/internal/config"
	"paperfx/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgPath := os.Getenv("PAPERFX_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/config.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger.SetLevel(cfg.App.LogLevel)
	defer logger.Sync()

	a, err := app.New(cfg, cfgPath, logger.L())
	if err != nil {
		log.Fatalf("build app: %v", err)
	}
	if err := a.Run(ctx); err != nil {
		log.Fatalf("run: %v", err)
	}
}
