package db

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ForUpdate adds a row lock to the next query. SQLite has no row locks and
// serialises writers on its own, so the clause is skipped there.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return nil
	}
	if tx.Dialector != nil && tx.Dialector.Name() == DialectSQLite {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// ForUpdateSkipLocked is ForUpdate for queue-style reads where rows locked by
// another worker are skipped instead of waited on.
func ForUpdateSkipLocked(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return nil
	}
	if tx.Dialector != nil && tx.Dialector.Name() == DialectSQLite {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
}
