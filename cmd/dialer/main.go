package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/acme/simpledialer/internal/app"
	"github.com/acme/simpledialer/internal/telemetry"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	configPath := flag.String("config", getEnv("CONFIG_FILE", "configs/config.yaml"), "path to configuration file")
	campaignArg := flag.String("campaign", "", "id of the campaign to run")
	flag.Parse()

	campaignID, err := uuid.Parse(*campaignArg)
	if err != nil {
		log.Fatalf("invalid campaign id %q: %v", *campaignArg, err)
	}

	container, err := app.Build(ctx, *configPath)
	if err != nil {
		log.Fatalf("failed to bootstrap application: %v", err)
	}
	defer container.Close(context.Background())

	shutdown, err := telemetry.Setup(ctx, container.Config.Telemetry, container.Config.App.Name+"-dialer")
	if err != nil {
		log.Fatalf("failed to initialize telemetry: %v", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	if err := container.EnsureTopics(ctx); err != nil {
		log.Fatalf("failed to ensure kafka topics: %v", err)
	}

	d, err := container.NewDialer()
	if err != nil {
		log.Fatalf("failed to build dialer: %v", err)
	}

	if err := d.Run(ctx, campaignID); err != nil {
		log.Fatalf("campaign run failed: %v", err)
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
