// Package config builds the process-wide configuration once at startup.
// Components receive a *Config and never read the environment themselves.
package config

import (
	"errors"
	"time"

	"github.com/nordlys/crmx/pkg/utils"
)

// Config carries every external setting the pipeline needs. It is constructed
// once in main and passed by reference to the app wiring.
type Config struct {
	// Warehouse
	ClickHouseAddr string
	Dataset        string // database holding the CRM tables
	TestDataset    string // alternate database used when a trigger sets test_mode

	// CRM API
	CRMBaseURL string
	CRMToken   string
	PageLimit  int // max records requested per page (API caps at 100)

	// Redis (snapshot event stream)
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	EventStream   string
	ConsumerGroup string

	// Ingestor HTTP server
	Addr        string
	IngestCron  string // optional cron spec for scheduled snapshots; empty disables
	DefaultLimit int   // per-entity fetch cap for triggered runs; 0 means unlimited

	// Scoring
	SettlingDelay time.Duration // wait between unit-score and aggregation queries
}

// FromEnv reads the environment exactly once and returns the resulting Config.
func FromEnv() *Config {
	dataset := utils.Env("CRMX_DATASET", "crmx")
	return &Config{
		ClickHouseAddr: utils.Env("CLICKHOUSE_ADDR", "clickhouse://localhost:9000?sslmode=disable"),
		Dataset:        dataset,
		TestDataset:    utils.Env("CRMX_TEST_DATASET", dataset+"_test"),

		CRMBaseURL: utils.Env("CRM_BASE_URL", "https://api.hubapi.com"),
		CRMToken:   utils.Env("CRM_API_TOKEN", ""),
		PageLimit:  utils.EnvInt("CRM_PAGE_LIMIT", 100),

		RedisHost:     utils.Env("REDIS_HOST", "localhost"),
		RedisPort:     utils.Env("REDIS_PORT", "6379"),
		RedisPassword: utils.Env("REDIS_PASSWORD", ""),
		RedisDB:       utils.EnvInt("REDIS_DB", 0),
		EventStream:   utils.Env("CRMX_EVENT_STREAM", "crmx:snapshots"),
		ConsumerGroup: utils.Env("CRMX_CONSUMER_GROUP", "crmx-scorer"),

		Addr:         utils.Env("ADDR", ":3000"),
		IngestCron:   utils.Env("CRMX_INGEST_CRON", ""),
		DefaultLimit: utils.EnvInt("CRMX_FETCH_LIMIT", 100),

		SettlingDelay: utils.EnvDuration("CRMX_SETTLING_DELAY", 5*time.Second),
	}
}

// ValidateForIngest fails fast when the ingestion path cannot possibly work.
// This is the source-unavailable error class: no write is attempted after it.
func (c *Config) ValidateForIngest() error {
	if c.CRMToken == "" {
		return errors.New("CRM_API_TOKEN is not set")
	}
	if c.Dataset == "" {
		return errors.New("dataset name is empty")
	}
	return nil
}

// DatasetFor returns the destination database for a run, honoring test mode.
func (c *Config) DatasetFor(testMode bool) string {
	if testMode {
		return c.TestDataset
	}
	return c.Dataset
}
