package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/zidane0ma/tagflow/config"
	_ "github.com/mutecomm/go-sqlcipher"
)

// DB represents the database connection
type DB struct {
	*sql.DB
	config *config.DatabaseConfig
}

// NewConnection creates a new database connection
func NewConnection(cfg *config.DatabaseConfig) (*DB, error) {
	// Open database connection
	sqlDB, err := sql.Open("sqlite3", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConnections)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConnections)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Second)

	// Test connection
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{
		DB:     sqlDB,
		config: cfg,
	}

	return db, nil
}

// HealthCheck performs a database health check
func (db *DB) HealthCheck() error {
	ctx, cancel := db.createContext()
	defer cancel()

	return db.PingContext(ctx)
}

// GetStats returns database connection statistics
func (db *DB) GetStats() sql.DBStats {
	return db.Stats()
}

// createContext creates a context with timeout
func (db *DB) createContext() (context.Context, context.CancelFunc) {
	timeout := time.Duration(db.config.BusyTimeout) * time.Millisecond
	return context.WithTimeout(context.Background(), timeout)
}

// InsertReturningID executes an INSERT outside of any caller-managed
// transaction and returns the new row's ID via Exec + LastInsertId.
func (db *DB) InsertReturningID(ctx context.Context, query string, args ...interface{}) (int64, error) {
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}
