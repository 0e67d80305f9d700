package ingestor

import (
	"context"
	"net/http"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/nordlys/crmx/app/ingestor/controller"
	"github.com/nordlys/crmx/app/ingestor/types"
	"github.com/nordlys/crmx/pkg/config"
	"github.com/nordlys/crmx/pkg/crm"
	"github.com/nordlys/crmx/pkg/db/warehouse"
	"github.com/nordlys/crmx/pkg/events"
	"github.com/nordlys/crmx/pkg/ingest"
	"github.com/nordlys/crmx/pkg/logging"
	"github.com/nordlys/crmx/pkg/redis"
)

// EventSource identifies this service in published event envelopes.
const EventSource = "crmx-ingestor"

// Initialize initializes the application.
func Initialize(ctx context.Context, cfg *config.Config) *types.App {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr
		panic(err)
	}

	if err := cfg.ValidateForIngest(); err != nil {
		logger.Fatal("Ingestion configuration is incomplete", zap.Error(err))
	}

	app := &types.App{
		Config: cfg,
		Logger: logger,
		CRM: crm.New(crm.Opts{
			BaseURL:   cfg.CRMBaseURL,
			Token:     cfg.CRMToken,
			PageLimit: cfg.PageLimit,
			Logger:    logger,
		}),
		Stores: xsync.NewMap[string, warehouse.Store](),
	}

	// Open the primary dataset eagerly so table init failures surface at
	// startup instead of on the first trigger.
	if _, err := app.StoreFor(ctx, false); err != nil {
		logger.Fatal("Unable to initialize warehouse", zap.Error(err))
	}

	// Redis is optional: without it snapshots still land in the warehouse,
	// scoring just has to be triggered by hand.
	redisClient, err := redis.NewClient(ctx, logger, redis.Options{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		logger.Warn("Redis unavailable, snapshot events will not be published", zap.Error(err))
	} else {
		app.RedisClient = redisClient
		app.Publisher = events.NewStreamPublisher(redisClient, cfg.EventStream, EventSource, logger)
	}

	return app
}

// NewServer creates the HTTP server handling snapshot triggers.
func NewServer(app *types.App) error {
	ctler := controller.NewController(app)
	router := ctler.NewRouter()

	app.Server = &http.Server{Addr: app.Config.Addr, Handler: controller.WithCORS(router)}
	app.Logger.Info("Starting server", zap.String("addr", app.Config.Addr))

	return nil
}

// StartCron schedules recurring ingestion runs when a cron spec is
// configured. Scheduled runs always target the primary dataset.
func StartCron(ctx context.Context, app *types.App) error {
	if app.Config.IngestCron == "" {
		app.Logger.Info("Scheduled ingestion disabled")
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc(app.Config.IngestCron, func() {
		runner, err := app.RunnerFor(ctx, false)
		if err != nil {
			app.Logger.Error("Scheduled run could not open warehouse", zap.Error(err))
			return
		}
		if _, err := runner.Run(ctx, ingest.Options{
			Limit:       app.Config.DefaultLimit,
			TriggeredBy: "schedule",
		}); err != nil {
			app.Logger.Error("Scheduled ingestion run failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}

	app.Cron = c
	c.Start()
	app.Logger.Info("Scheduled ingestion enabled", zap.String("cron", app.Config.IngestCron))
	return nil
}
