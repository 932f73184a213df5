package store

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
	"github.com/uptrace/bun/schema"
	_ "modernc.org/sqlite"

	"standards-rag/internal/config"
)

// Connect opens the metadata database. Postgres is the deployment target,
// sqlite covers local runs and tests.
func Connect(cfg config.DatabaseConfig) (*bun.DB, error) {
	switch cfg.Driver {
	case "postgres":
		sqldb := sql.OpenDB(pgdriver.NewConnector(
			pgdriver.WithDSN(cfg.DSN),
			pgdriver.WithPassword(cfg.Password),
		))
		return wire(sqldb, pgdialect.New(), cfg.Debug), nil
	case "sqlite":
		sqldb, err := sql.Open("sqlite", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("store: open sqlite: %w", err)
		}
		// modernc sqlite serializes writes through a single connection.
		sqldb.SetMaxOpenConns(1)
		return wire(sqldb, sqlitedialect.New(), cfg.Debug), nil
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", cfg.Driver)
	}
}

func wire(sqldb *sql.DB, dialect schema.Dialect, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, dialect)
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}
