package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/dcornejo/ayudasync/internal/agent"
	"github.com/dcornejo/ayudasync/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	app, err := agent.NewApp(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("%v", err)
	}
}
