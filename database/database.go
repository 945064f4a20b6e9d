package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shelfkeep/shelfkeep"
	"github.com/shelfkeep/shelfkeep/database/jsonfile"
	"github.com/shelfkeep/shelfkeep/database/postgres"
	"github.com/shelfkeep/shelfkeep/database/sqlite"

	_ "modernc.org/sqlite" // SQLite driver
)

// Config holds the configuration for connecting to a metadata backend.
type Config struct {
	// Type specifies the backend: "jsonfile", "sqlite" or "postgres"
	Type string `mapstructure:"type" validate:"required,oneof=jsonfile sqlite postgres"`
	// DSN is the data source name: a file path for jsonfile, a SQLite DSN,
	// or a PostgreSQL connection string
	DSN string `mapstructure:"dsn" validate:"required"`
}

// Connect establishes the configured metadata backend and returns a
// BookRepo. The returned cleanup function should be called to close the
// connection.
func Connect(ctx context.Context, cfg Config) (shelfkeep.BookRepo, func(), error) {
	switch cfg.Type {
	case "jsonfile":
		return connectJSONFile(cfg.DSN)
	case "sqlite":
		return connectSQLite(ctx, cfg.DSN)
	case "postgres":
		return connectPostgres(ctx, cfg.DSN)
	default:
		return nil, nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}

func connectJSONFile(path string) (shelfkeep.BookRepo, func(), error) {
	repo, err := jsonfile.NewRepo(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open jsonfile: %w", err)
	}

	return repo, func() {}, nil
}

func connectSQLite(ctx context.Context, dsn string) (shelfkeep.BookRepo, func(), error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if err = sqlite.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrate sqlite: %w", err)
	}

	cleanup := func() {
		_ = db.Close()
	}

	return sqlite.NewRepo(db), cleanup, nil
}

func connectPostgres(ctx context.Context, dsn string) (shelfkeep.BookRepo, func(), error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err = postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate postgres: %w", err)
	}

	return postgres.NewRepo(pool), pool.Close, nil
}
