// Package scorer wires the Redis stream consumer to the scoring stage: each
// snapshot-completed event claims the snapshot and computes its scores.
package scorer

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"

	"github.com/nordlys/crmx/pkg/config"
	"github.com/nordlys/crmx/pkg/db/warehouse"
	"github.com/nordlys/crmx/pkg/events"
	"github.com/nordlys/crmx/pkg/logging"
	"github.com/nordlys/crmx/pkg/redis"
	"github.com/nordlys/crmx/pkg/scoring"
)

type App struct {
	Config      *config.Config
	Logger      *zap.Logger
	RedisClient *redis.Client

	// Stores caches one warehouse connection per dataset; events carry a
	// test-mode flag that routes scoring to the alternate dataset.
	Stores *xsync.Map[string, warehouse.Store]
}

// Initialize initializes the application. The scorer is useless without
// Redis, so a missing stream is fatal here.
func Initialize(ctx context.Context, cfg *config.Config) *App {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr
		panic(err)
	}

	redisClient, err := redis.NewClient(ctx, logger, redis.Options{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		logger.Fatal("Unable to connect to redis", zap.Error(err))
	}

	app := &App{
		Config:      cfg,
		Logger:      logger,
		RedisClient: redisClient,
		Stores:      xsync.NewMap[string, warehouse.Store](),
	}

	if _, err := app.StoreFor(ctx, false); err != nil {
		logger.Fatal("Unable to initialize warehouse", zap.Error(err))
	}

	return app
}

// StoreFor returns the warehouse store for a dataset, creating it lazily.
func (a *App) StoreFor(ctx context.Context, testMode bool) (warehouse.Store, error) {
	dataset := a.Config.DatasetFor(testMode)
	if store, ok := a.Stores.Load(dataset); ok {
		return store, nil
	}

	db, err := warehouse.New(ctx, a.Logger, a.Config.ClickHouseAddr, dataset)
	if err != nil {
		return nil, err
	}

	store, loaded := a.Stores.LoadOrStore(dataset, warehouse.Store(db))
	if loaded {
		_ = db.Close()
	}
	return store, nil
}

// Run consumes the snapshot event stream until the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "scorer"
	}
	// Unique per process: the group reads undelivered entries only, so a
	// reused name after restart would gain nothing but id collisions.
	consumerName := fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])

	consumer, err := redis.NewStreamConsumer(a.RedisClient, redis.StreamConsumerConfig{
		Stream:   a.Config.EventStream,
		Group:    a.Config.ConsumerGroup,
		Consumer: consumerName,
		Logger:   a.Logger,
	})
	if err != nil {
		return err
	}

	a.Logger.Info("Scorer consuming snapshot events",
		zap.String("stream", a.Config.EventStream),
		zap.String("group", a.Config.ConsumerGroup),
		zap.String("consumer", consumerName),
	)
	return consumer.Run(ctx, a.handleMessage)
}

// handleMessage processes one stream entry. Malformed entries are
// acknowledged and dropped so they never wedge the group; infrastructure
// errors are returned unacknowledged for redelivery.
func (a *App) handleMessage(ctx context.Context, msg redis.Message) error {
	data := msg.GetData()
	if len(data) == 0 {
		a.Logger.Warn("Stream entry has no data field", zap.String("id", msg.ID))
		return nil
	}

	env, err := events.Decode(data)
	if err != nil {
		a.Logger.Error("Dropping undecodable event", zap.String("id", msg.ID), zap.Error(err))
		return nil
	}
	if env.Type != events.TypeSnapshotCompleted {
		a.Logger.Debug("Skipping event", zap.String("type", env.Type))
		return nil
	}

	payload, err := events.DecodeSnapshotCompleted(env)
	if err != nil {
		a.Logger.Error("Dropping malformed snapshot event", zap.String("id", msg.ID), zap.Error(err))
		return nil
	}

	store, err := a.StoreFor(ctx, payload.Metadata.TestMode)
	if err != nil {
		return err
	}

	handler := &scoring.Handler{
		Store: store,
		Processor: &scoring.Processor{
			Store:         store,
			Logger:        a.Logger,
			SettlingDelay: a.Config.SettlingDelay,
		},
		Logger: a.Logger,
	}
	return handler.ProcessSnapshot(ctx, payload.SnapshotID)
}

// Close releases the warehouse and redis connections.
func (a *App) Close() {
	a.Stores.Range(func(dataset string, store warehouse.Store) bool {
		if err := store.Close(); err != nil {
			a.Logger.Error("Failed to close warehouse connection",
				zap.String("dataset", dataset), zap.Error(err))
		}
		return true
	})

	if err := a.RedisClient.Close(); err != nil {
		a.Logger.Error("Failed to close redis connection", zap.Error(err))
	}
}
