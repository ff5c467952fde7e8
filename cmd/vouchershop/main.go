package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	coreconfig "github.com/m3rciful/vouchershop/core/config"
	"github.com/m3rciful/vouchershop/core/logger"
	coretelegram "github.com/m3rciful/vouchershop/core/telegram"
	"github.com/m3rciful/vouchershop/internal/app"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("vouchershop: %v", err)
	}
}

func run() error {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yml"
	}

	log.Printf("loading config: %s", cfgPath)
	cfg, err := coreconfig.Load(cfgPath)
	if err != nil {
		return err
	}

	application, err := app.Bootstrap(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := application.Close(); err != nil {
			log.Printf("close error: %v", err)
		}
		if err := logger.Shutdown(); err != nil {
			log.Printf("logger shutdown error: %v", err)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return coretelegram.RunTelegram(ctx, application.TelegramRunOptions())
}
