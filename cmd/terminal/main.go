// ====================================
// File: cmd/terminal/main.go
// ====================================
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/kamilbekov/solana-terminal/internal/app"
	"github.com/kamilbekov/solana-terminal/internal/config"
	"github.com/kamilbekov/solana-terminal/internal/logger"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	dev := flag.Bool("dev", false, "development logging")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Development: *dev || cfg.DebugLogging})
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to build logger:", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("starting terminal core")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := app.NewRunner(log)
	if err := runner.InitializeConfig(cfg); err != nil {
		log.Fatal("failed to initialize", zap.Error(err))
	}

	if err := runner.Run(ctx); err != nil {
		log.Fatal("runner error", zap.Error(err))
	}
}
