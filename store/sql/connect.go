package sqlstore

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// OpenSQL opens a database handle for the given driver and returns it with
// the matching bun dialect. Hosts that run their own persistence client can
// feed the pair straight into persistence.New; everyone else can use Open.
func OpenSQL(driver, dsn string) (*sql.DB, schema.Dialect, error) {
	driver = strings.ToLower(strings.TrimSpace(driver))
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, nil, fmt.Errorf("sqlstore: dsn is required")
	}
	switch driver {
	case DriverPostgres, "postgresql", "pg":
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlstore: open postgres: %w", err)
		}
		return db, pgdialect.New(), nil
	case DriverSQLite, "sqlite":
		db, err := sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlstore: open sqlite: %w", err)
		}
		return db, sqlitedialect.New(), nil
	case "":
		return nil, nil, fmt.Errorf("sqlstore: driver is required")
	default:
		return nil, nil, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}
}

// Open opens a bun database for the given driver and DSN.
func Open(driver, dsn string) (*bun.DB, error) {
	db, dialect, err := OpenSQL(driver, dsn)
	if err != nil {
		return nil, err
	}
	return bun.NewDB(db, dialect), nil
}
