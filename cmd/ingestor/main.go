package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/nordlys/crmx/app/ingestor"
	"github.com/nordlys/crmx/pkg/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	defer cancel()

	cfg := config.FromEnv()
	app := ingestor.Initialize(ctx, cfg)

	serverErr := ingestor.NewServer(app)
	if serverErr != nil {
		app.Logger.Fatal("Unable to initialize server", zap.Error(serverErr))
	}

	if err := ingestor.StartCron(ctx, app); err != nil {
		app.Logger.Fatal("Unable to schedule ingestion", zap.Error(err))
	}

	app.Start(ctx)
}
