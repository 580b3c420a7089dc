package repositories

import (
	"database/sql"

	"payhub/internal/platform/models"
)

// SettlementStore ties the Payup status CAS and the Transaction insert into
// one database transaction: either both land or neither does. This is the
// only operation spanning two tables.
type SettlementStore struct {
	db           *sql.DB
	payups       *PayupRepository
	transactions *TransactionRepository
}

func NewSettlementStore(db *sql.DB, payups *PayupRepository, transactions *TransactionRepository) *SettlementStore {
	return &SettlementStore{db: db, payups: payups, transactions: transactions}
}

// Settle moves the session to its terminal status and records the settlement.
// Returns ErrTransitionConflict when a concurrent writer won the CAS, with
// nothing written.
func (s *SettlementStore) Settle(payupID string, from []models.PayupStatus, to models.PayupStatus, txn *models.Transaction, now int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.payups.TransitionTx(tx, payupID, from, to, now); err != nil {
		return err
	}
	if err := s.transactions.CreateTx(tx, txn); err != nil {
		return err
	}

	return tx.Commit()
}
