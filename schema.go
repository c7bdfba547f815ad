package identity

import (
	"context"
	"database/sql"
	"strings"

	"github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// OpenDB opens a bun database for driver ("postgres" or "sqlite").
func OpenDB(driver, dsn string) (*bun.DB, error) {
	switch strings.ToLower(driver) {
	case "postgres", "postgresql", "pg":
		connector, err := pq.NewConnector(dsn)
		if err != nil {
			return nil, ErrConfiguration("invalid postgres dsn", map[string]any{"error": err.Error()})
		}
		return bun.NewDB(sql.OpenDB(connector), pgdialect.New()), nil
	case "sqlite", "sqlite3":
		sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
		if err != nil {
			return nil, err
		}
		if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
			sqldb.SetMaxOpenConns(1)
		}
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	default:
		return nil, ErrConfiguration("unsupported database driver", map[string]any{"driver": driver})
	}
}

// CreateSchema creates the users table and its indexes when missing.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	if _, err := db.NewCreateTable().
		Model((*User)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return err
	}

	_, err := db.NewCreateIndex().
		Model((*User)(nil)).
		Index("idx_users_status").
		Column("status").
		IfNotExists().
		Exec(ctx)
	return err
}
