package db

import (
	"context"
	"database/sql"
	"fmt"

	"bridgeindexer/internal/config"
	"bridgeindexer/internal/errors"
	"bridgeindexer/internal/logger"
	"bridgeindexer/internal/snowflake"

	_ "github.com/mattn/go-sqlite3"
)

// DB represents the database connection backing the persistence adapters
// described in SPEC_FULL.md §4.L.
type DB struct {
	Conn      *sql.DB
	Config    *config.Config
	Snowflake *snowflake.Snowflake
	Log       logger.Logger
}

// NewDatabase creates a new database connection
func NewDatabase(cfg *config.Config, sf *snowflake.Snowflake, log logger.Logger) (*DB, error) {
	connStr := fmt.Sprintf("file:%s", cfg.DBPath)

	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, errors.NewDatabaseError(err)
	}

	if err := conn.Ping(); err != nil {
		return nil, errors.NewDatabaseError(err)
	}

	log.Info("Connected to database", logger.String("path", cfg.DBPath))
	return &DB{Conn: conn, Config: cfg, Snowflake: sf, Log: log}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.Conn != nil {
		if err := db.Conn.Close(); err != nil {
			return errors.NewDatabaseError(err)
		}
	}
	return nil
}

// GetConnection returns the underlying database connection
func (db *DB) GetConnection() *sql.DB {
	return db.Conn
}

// ExecuteQuery executes a query with parameters and returns the result
func (db *DB) ExecuteQuery(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := db.Conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewDatabaseError(err)
	}
	return rows, nil
}

// ExecuteStatement executes a statement with parameters
func (db *DB) ExecuteStatement(ctx context.Context, query string, args ...any) (sql.Result, error) {
	result, err := db.Conn.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewDatabaseError(err)
	}
	return result, nil
}

// GenerateID produces a new Snowflake id, used as the synthetic primary
// key of stored transaction records.
func (db *DB) GenerateID() (int64, error) {
	id, err := db.Snowflake.GenerateID()
	if err != nil {
		return 0, errors.NewDatabaseError(err)
	}
	return id, nil
}
