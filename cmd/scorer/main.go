package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/nordlys/crmx/app/scorer"
	"github.com/nordlys/crmx/pkg/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	defer cancel()

	cfg := config.FromEnv()
	app := scorer.Initialize(ctx, cfg)
	defer app.Close()

	if err := app.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		app.Logger.Fatal("Consumer stopped", zap.Error(err))
	}

	app.Logger.Info("さようなら!")
}
