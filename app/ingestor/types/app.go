package types

import (
	"context"
	"net/http"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/nordlys/crmx/pkg/config"
	"github.com/nordlys/crmx/pkg/crm"
	"github.com/nordlys/crmx/pkg/db/warehouse"
	"github.com/nordlys/crmx/pkg/events"
	"github.com/nordlys/crmx/pkg/ingest"
	"github.com/nordlys/crmx/pkg/redis"
)

type App struct {
	Config *config.Config
	Logger *zap.Logger

	CRM         *crm.Client
	RedisClient *redis.Client
	Publisher   events.Publisher

	// Stores caches one warehouse connection per dataset; test-mode triggers
	// route to the alternate dataset without reconnecting per request.
	Stores *xsync.Map[string, warehouse.Store]

	// Server represents the HTTP server instance used to handle trigger requests.
	Server *http.Server
	Cron   *cron.Cron
}

// StoreFor returns the warehouse store for a run, honoring test mode.
// Stores are created lazily and cached; a racing create keeps the first one.
func (a *App) StoreFor(ctx context.Context, testMode bool) (warehouse.Store, error) {
	dataset := a.Config.DatasetFor(testMode)
	if store, ok := a.Stores.Load(dataset); ok {
		return store, nil
	}

	a.Logger.Debug("Opening warehouse store", zap.String("dataset", dataset))
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

// RunnerFor builds an ingestion runner bound to the dataset test mode selects.
func (a *App) RunnerFor(ctx context.Context, testMode bool) (*ingest.Runner, error) {
	store, err := a.StoreFor(ctx, testMode)
	if err != nil {
		return nil, err
	}
	return &ingest.Runner{
		Store:     store,
		CRM:       a.CRM,
		Publisher: a.Publisher,
		Logger:    a.Logger,
		TestMode:  testMode,
	}, nil
}

// Start starts the application.
func (a *App) Start(ctx context.Context) {
	go func() { _ = a.Server.ListenAndServe() }()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if a.Cron != nil {
		<-a.Cron.Stop().Done()
	}

	a.Stores.Range(func(dataset string, store warehouse.Store) bool {
		if err := store.Close(); err != nil {
			a.Logger.Error("Failed to close warehouse connection",
				zap.String("dataset", dataset), zap.Error(err))
		}
		return true
	})

	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}

	_ = a.Server.Shutdown(shutdownCtx)
	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")
}
