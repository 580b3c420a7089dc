package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"payhub/internal/platform/models"
)

// ErrTransitionConflict is returned when a compare-and-swap status update
// matched no row because the session is no longer in the expected state.
var ErrTransitionConflict = errors.New("payup status transition conflict")

type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

type PayupRepository struct {
	db *sql.DB
}

func NewPayupRepository(db *sql.DB) *PayupRepository {
	return &PayupRepository{db: db}
}

func (r *PayupRepository) Create(p *models.Payup) error {
	if p.ID == "" {
		p.ID = "pay_" + uuid.New().String()
	}

	metaJSON, err := json.Marshal(p.Metadata)
	if err != nil {
		return err
	}
	providerJSON, err := json.Marshal(p.ProviderData)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO payups (
			id, app_id, amount, currency, status,
			customer_name, customer_email, return_url, cancel_url,
			metadata, provider_data, expires_at, completed_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.Exec(query,
		p.ID, p.AppID, p.Amount, p.Currency, p.Status,
		p.CustomerName, p.CustomerEmail, p.ReturnURL, p.CancelURL,
		string(metaJSON), string(providerJSON), p.ExpiresAt, p.CompletedAt, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func (r *PayupRepository) GetByID(id string) (*models.Payup, error) {
	row := r.db.QueryRow(payupSelect+` WHERE id = ?`, id)
	return scanPayup(row)
}

// Transition is the compare-and-swap status update every writer must go
// through. It succeeds only when the current status is in from; a terminal
// target also stamps completed_at.
func (r *PayupRepository) Transition(id string, from []models.PayupStatus, to models.PayupStatus, now int64) error {
	return transitionExec(r.db, id, from, to, now)
}

// TransitionTx runs the same CAS inside a caller-owned transaction. Used by
// the settlement store to tie the status change to the Transaction insert.
func (r *PayupRepository) TransitionTx(tx *sql.Tx, id string, from []models.PayupStatus, to models.PayupStatus, now int64) error {
	return transitionExec(tx, id, from, to, now)
}

func transitionExec(ex execer, id string, from []models.PayupStatus, to models.PayupStatus, now int64) error {
	placeholders := make([]string, len(from))
	args := make([]interface{}, 0, len(from)+4)

	var completedAt interface{}
	if to.Terminal() {
		completedAt = now
	}
	args = append(args, to, now, completedAt, id)
	for i, s := range from {
		placeholders[i] = "?"
		args = append(args, s)
	}

	query := `UPDATE payups SET status = ?, updated_at = ?, completed_at = ? WHERE id = ? AND status IN (` +
		strings.Join(placeholders, ", ") + `)`

	res, err := ex.Exec(query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrTransitionConflict
	}
	return nil
}

// ListExpired returns pending sessions whose expiry has passed, oldest first.
func (r *PayupRepository) ListExpired(now int64, limit int) ([]*models.Payup, error) {
	query := payupSelect + ` WHERE status = ? AND expires_at <= ? ORDER BY expires_at ASC LIMIT ?`
	rows, err := r.db.Query(query, models.PayupPending, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payups []*models.Payup
	for rows.Next() {
		p, err := scanPayup(rows)
		if err != nil {
			return nil, err
		}
		payups = append(payups, p)
	}
	return payups, rows.Err()
}

const payupSelect = `
	SELECT id, app_id, amount, currency, status,
	       customer_name, customer_email, return_url, cancel_url,
	       metadata, provider_data, expires_at, completed_at, created_at, updated_at
	FROM payups`

func scanPayup(s interface {
	Scan(dest ...interface{}) error
}) (*models.Payup, error) {
	var p models.Payup
	var customerName, customerEmail, returnURL, cancelURL sql.NullString
	var metaRaw, providerRaw sql.NullString
	var completedAt sql.NullInt64

	err := s.Scan(
		&p.ID, &p.AppID, &p.Amount, &p.Currency, &p.Status,
		&customerName, &customerEmail, &returnURL, &cancelURL,
		&metaRaw, &providerRaw, &p.ExpiresAt, &completedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	p.CustomerName = customerName.String
	p.CustomerEmail = customerEmail.String
	p.ReturnURL = returnURL.String
	p.CancelURL = cancelURL.String
	if completedAt.Valid {
		val := completedAt.Int64
		p.CompletedAt = &val
	}
	if metaRaw.Valid && metaRaw.String != "" {
		json.Unmarshal([]byte(metaRaw.String), &p.Metadata)
	}
	if providerRaw.Valid && providerRaw.String != "" {
		json.Unmarshal([]byte(providerRaw.String), &p.ProviderData)
	}

	return &p, nil
}
