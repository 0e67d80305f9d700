// Package warehouse wraps the ClickHouse connection with the pipeline's
// table lifecycle and data operations: table creation from the schema
// registry, batched appends, reference reloads, and the snapshot registry.
package warehouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/nordlys/crmx/pkg/db/clickhouse"
	"github.com/nordlys/crmx/pkg/db/models"
)

// DB represents a warehouse connection bound to one dataset (database).
type DB struct {
	clickhouse.Client
	Name string
}

// New connects to ClickHouse and initializes the dataset: the database plus
// every table the schema registry declares.
func New(ctx context.Context, logger *zap.Logger, dsn, name string) (*DB, error) {
	name = clickhouse.SanitizeName(name)

	client, err := clickhouse.New(ctx, logger.With(zap.String("db", name)), dsn, name)
	if err != nil {
		return nil, err
	}

	db := &DB{
		Client: client,
		Name:   name,
	}

	if err := db.InitializeDB(ctx); err != nil {
		return nil, err
	}

	return db, nil
}

// Close terminates the underlying ClickHouse connection.
func (db *DB) Close() error {
	return db.Db.Close()
}

// GetConnection returns the underlying ClickHouse driver connection.
func (db *DB) GetConnection() driver.Conn {
	return db.Db
}

// DatabaseName returns the dataset this connection is bound to.
func (db *DB) DatabaseName() string {
	return db.Name
}

// InitializeDB ensures the dataset and all registry tables exist.
func (db *DB) InitializeDB(ctx context.Context) error {
	db.Logger.Info("Initializing warehouse dataset", zap.String("database", db.Name))

	if err := db.CreateDbIfNotExists(ctx, db.Name); err != nil {
		return fmt.Errorf("failed to create database %s: %w", db.Name, err)
	}

	if err := db.SwitchToTargetDatabase(ctx); err != nil {
		return fmt.Errorf("failed to switch to database %s: %w", db.Name, err)
	}

	inits := []struct {
		table string
		fn    func(context.Context, driver.Conn) error
	}{
		{models.TableCompanies, models.InitCompanies},
		{models.TableDeals, models.InitDeals},
		{models.TableOwners, models.InitOwners},
		{models.TableStageMapping, models.InitStageMapping},
		{models.TableDealStageReference, models.InitDealStageReference},
		{models.TablePipelineUnits, models.InitPipelineUnits},
		{models.TableScoreHistory, models.InitScoreHistory},
		{models.TableSnapshotRegistry, models.InitSnapshotRegistry},
	}

	for _, init := range inits {
		db.Logger.Debug("Initialize table", zap.String("table", init.table))
		if err := init.fn(ctx, db.Db); err != nil {
			return fmt.Errorf("failed to initialize table %s: %w", init.table, err)
		}
	}

	// CREATE IF NOT EXISTS leaves pre-existing tables untouched, so schema
	// drift on them survives initialization. Surface it, don't halt on it.
	if missing, err := db.CheckTables(ctx); err != nil {
		db.Logger.Warn("Table compatibility check failed", zap.Error(err))
	} else if len(missing) > 0 {
		db.Logger.Warn("Tables still missing after initialization", zap.Strings("tables", missing))
	}

	return nil
}

// CheckTables reports registry tables that are missing from the dataset and
// logs column drift on the tables that exist. A mismatch is flagged, not
// fatal: existing tables are left untouched.
func (db *DB) CheckTables(ctx context.Context) ([]string, error) {
	var missing []string
	for name, table := range models.Registry {
		exists, err := db.TableExists(ctx, db.Name, name)
		if err != nil {
			return nil, err
		}
		if !exists {
			missing = append(missing, name)
			continue
		}

		live, err := db.liveColumns(ctx, name)
		if err != nil {
			return nil, err
		}
		for _, drift := range columnDrift(table.Columns, live) {
			db.Logger.Warn("Table differs from its declared schema",
				zap.String("table", name),
				zap.String("mismatch", drift),
			)
		}
	}
	return missing, nil
}

// liveColumns reads a table's actual columns from system.columns.
func (db *DB) liveColumns(ctx context.Context, table string) (map[string]string, error) {
	var rows []struct {
		Name string `ch:"name"`
		Type string `ch:"type"`
	}
	query := `
		SELECT name, type
		FROM system.columns
		WHERE database = ? AND table = ?
		ORDER BY position
	`
	if err := db.Select(ctx, &rows, query, db.Name, table); err != nil {
		return nil, fmt.Errorf("read columns for %s: %w", table, err)
	}

	live := make(map[string]string, len(rows))
	for _, row := range rows {
		live[row.Name] = row.Type
	}
	return live, nil
}

// columnDrift compares live columns (name -> type) against the declared
// definitions and describes every mismatch: declared columns the table
// lacks, type changes, and columns the registry does not know about.
func columnDrift(declared []models.ColumnDef, live map[string]string) []string {
	var drifts []string
	for _, col := range declared {
		liveType, ok := live[col.Name]
		if !ok {
			drifts = append(drifts, fmt.Sprintf("declared column %s is missing", col.Name))
			continue
		}
		if liveType != col.Type {
			drifts = append(drifts, fmt.Sprintf("column %s is %s, declared %s", col.Name, liveType, col.Type))
		}
	}
	for name := range live {
		if !models.HasColumn(declared, name) {
			drifts = append(drifts, fmt.Sprintf("column %s is not declared", name))
		}
	}
	return drifts
}

// SnapshotCount returns the number of rows in a table for one snapshot.
func (db *DB) SnapshotCount(ctx context.Context, table, snapshotID string) (uint64, error) {
	var count uint64
	query := fmt.Sprintf("SELECT count() FROM %s WHERE snapshot_id = ?", table)
	if err := db.QueryRow(ctx, query, snapshotID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count snapshot rows in %s: %w", table, err)
	}
	return count, nil
}
