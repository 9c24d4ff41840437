package repository

import (
	"context"

	"gorm.io/gorm"
)

// conn returns tx when the caller is inside a transaction, the pool otherwise.
// Every method taking a tx must route through it: on a single-connection
// pool (SQLite in tests) mixing tx and pool queries deadlocks.
func conn(ctx context.Context, db, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return db.WithContext(ctx)
}
