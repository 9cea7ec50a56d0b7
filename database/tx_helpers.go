package database

import (
	"context"
	"database/sql"
)

// TxInsertReturningID executes an INSERT inside a transaction and returns the
// new row's ID via Exec + LastInsertId. Every store in scope is SQLite.
func (db *DB) TxInsertReturningID(ctx context.Context, tx *sql.Tx, query string, args ...interface{}) (int64, error) {
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}
