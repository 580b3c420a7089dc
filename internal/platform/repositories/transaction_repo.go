package repositories

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"payhub/internal/platform/models"
)

type TransactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(txn *models.Transaction) error {
	return createTransactionExec(r.db, txn)
}

func (r *TransactionRepository) CreateTx(tx *sql.Tx, txn *models.Transaction) error {
	return createTransactionExec(tx, txn)
}

func createTransactionExec(ex execer, txn *models.Transaction) error {
	if txn.ID == "" {
		txn.ID = "txn_" + uuid.New().String()
	}
	if txn.CreatedAt == 0 {
		txn.CreatedAt = time.Now().Unix()
	}

	providerJSON, err := json.Marshal(txn.ProviderData)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO transactions (
			id, app_id, payup_id, external_id, amount, currency, status,
			failure_reason, provider_data, fees, net_amount, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = ex.Exec(query,
		txn.ID, txn.AppID, txn.PayupID, txn.ExternalID, txn.Amount, txn.Currency, txn.Status,
		txn.FailureReason, string(providerJSON), txn.Fees, txn.NetAmount, txn.CreatedAt,
	)
	return err
}

func (r *TransactionRepository) GetByID(id string) (*models.Transaction, error) {
	row := r.db.QueryRow(transactionSelect+` WHERE id = ?`, id)
	return scanTransaction(row)
}

func (r *TransactionRepository) GetByPayupID(payupID string) (*models.Transaction, error) {
	row := r.db.QueryRow(transactionSelect+` WHERE payup_id = ?`, payupID)
	return scanTransaction(row)
}

const transactionSelect = `
	SELECT id, app_id, payup_id, external_id, amount, currency, status,
	       failure_reason, provider_data, fees, net_amount, created_at
	FROM transactions`

func scanTransaction(row *sql.Row) (*models.Transaction, error) {
	var t models.Transaction
	var externalID, failureReason, providerRaw sql.NullString
	var fees, netAmount sql.NullInt64

	err := row.Scan(
		&t.ID, &t.AppID, &t.PayupID, &externalID, &t.Amount, &t.Currency, &t.Status,
		&failureReason, &providerRaw, &fees, &netAmount, &t.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	t.ExternalID = externalID.String
	t.FailureReason = failureReason.String
	if fees.Valid {
		val := fees.Int64
		t.Fees = &val
	}
	if netAmount.Valid {
		val := netAmount.Int64
		t.NetAmount = &val
	}
	if providerRaw.Valid && providerRaw.String != "" {
		json.Unmarshal([]byte(providerRaw.String), &t.ProviderData)
	}

	return &t, nil
}
