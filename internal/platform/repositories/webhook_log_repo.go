package repositories

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"payhub/internal/platform/models"
)

type WebhookLogRepository struct {
	db *sql.DB
}

func NewWebhookLogRepository(db *sql.DB) *WebhookLogRepository {
	return &WebhookLogRepository{db: db}
}

func (r *WebhookLogRepository) Insert(lg *models.WebhookLog) error {
	return insertLogExec(r.db, lg)
}

func insertLogExec(ex execer, lg *models.WebhookLog) error {
	if lg.ID == "" {
		lg.ID = "whl_" + uuid.New().String()
	}
	if lg.CreatedAt == 0 {
		lg.CreatedAt = time.Now().Unix()
	}

	headersJSON, err := json.Marshal(lg.Headers)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO webhook_logs (
			id, app_id, transaction_id, event_id, event_type, direction, status,
			payload, headers, status_code, response_body, error_message,
			retry_count, next_retry_at, claimed_at, processed_at, latency_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = ex.Exec(query,
		lg.ID, lg.AppID, lg.TransactionID, lg.EventID, lg.EventType, lg.Direction, lg.Status,
		lg.Payload, string(headersJSON), lg.StatusCode, lg.ResponseBody, lg.ErrorMessage,
		lg.RetryCount, lg.NextRetryAt, lg.ClaimedAt, lg.ProcessedAt, lg.LatencyMS, lg.CreatedAt,
	)
	return err
}

// UpdateOutcome finalizes an attempt row after delivery was tried (or given
// up on). Scheduling fields and payload never change after insert.
func (r *WebhookLogRepository) UpdateOutcome(lg *models.WebhookLog) error {
	return updateOutcomeExec(r.db, lg)
}

func updateOutcomeExec(ex execer, lg *models.WebhookLog) error {
	query := `
		UPDATE webhook_logs
		SET status = ?, status_code = ?, response_body = ?, error_message = ?,
		    processed_at = ?, latency_ms = ?
		WHERE id = ?
	`
	_, err := ex.Exec(query,
		lg.Status, lg.StatusCode, lg.ResponseBody, lg.ErrorMessage,
		lg.ProcessedAt, lg.LatencyMS, lg.ID)
	return err
}

// RecordRetry finalizes a failed attempt and inserts its successor in one
// database transaction, so a crash can never leave a retrying row without a
// scheduled follow-up.
func (r *WebhookLogRepository) RecordRetry(lg, next *models.WebhookLog) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := updateOutcomeExec(tx, lg); err != nil {
		return err
	}
	if err := insertLogExec(tx, next); err != nil {
		return err
	}
	return tx.Commit()
}

// ClaimDue selects outbound rows ready for delivery on behalf of active apps
// and claims each with a per-row CAS to in_flight. Due means a scheduled row
// whose retry time has come, or an in_flight row whose claim is older than
// the lease: those were claimed by a worker that died before recording an
// outcome, and are delivered again. Rows a concurrent poller claimed first
// are skipped.
func (r *WebhookLogRepository) ClaimDue(now, lease int64, limit int) ([]*models.WebhookLog, error) {
	stale := now - lease
	query := webhookLogSelect + `
		JOIN apps ON apps.id = webhook_logs.app_id
		WHERE webhook_logs.direction = ? AND apps.active = 1
		  AND ((webhook_logs.status = ? AND webhook_logs.next_retry_at <= ?)
		    OR (webhook_logs.status = ? AND webhook_logs.claimed_at <= ?))
		ORDER BY webhook_logs.next_retry_at ASC
		LIMIT ?
	`
	rows, err := r.db.Query(query, models.DirectionOutbound,
		models.DeliveryScheduled, now, models.DeliveryInFlight, stale, limit)
	if err != nil {
		return nil, err
	}

	var candidates []*models.WebhookLog
	for rows.Next() {
		lg, err := scanWebhookLog(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		candidates = append(candidates, lg)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var claimed []*models.WebhookLog
	for _, lg := range candidates {
		var res sql.Result
		var err error
		if lg.Status == models.DeliveryScheduled {
			res, err = r.db.Exec(`UPDATE webhook_logs SET status = ?, claimed_at = ? WHERE id = ? AND status = ?`,
				models.DeliveryInFlight, now, lg.ID, models.DeliveryScheduled)
		} else {
			// Reclaim races on the old claim timestamp.
			res, err = r.db.Exec(`UPDATE webhook_logs SET claimed_at = ? WHERE id = ? AND status = ? AND claimed_at = ?`,
				now, lg.ID, models.DeliveryInFlight, lg.ClaimedAt)
		}
		if err != nil {
			return claimed, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return claimed, err
		}
		if affected == 1 {
			lg.Status = models.DeliveryInFlight
			claimedAt := now
			lg.ClaimedAt = &claimedAt
			claimed = append(claimed, lg)
		}
	}
	return claimed, nil
}

func (r *WebhookLogRepository) ListByApp(appID string, limit, offset int) ([]*models.WebhookLog, error) {
	query := webhookLogSelect + ` WHERE app_id = ? ORDER BY created_at DESC, retry_count DESC LIMIT ? OFFSET ?`
	return r.queryLogs(query, appID, limit, offset)
}

func (r *WebhookLogRepository) ListByEvent(appID, eventID string) ([]*models.WebhookLog, error) {
	query := webhookLogSelect + ` WHERE app_id = ? AND event_id = ? ORDER BY retry_count ASC`
	return r.queryLogs(query, appID, eventID)
}

func (r *WebhookLogRepository) queryLogs(query string, args ...interface{}) ([]*models.WebhookLog, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*models.WebhookLog
	for rows.Next() {
		lg, err := scanWebhookLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, lg)
	}
	return logs, rows.Err()
}

const webhookLogSelect = `
	SELECT webhook_logs.id, webhook_logs.app_id, webhook_logs.transaction_id,
	       webhook_logs.event_id, webhook_logs.event_type, webhook_logs.direction,
	       webhook_logs.status, webhook_logs.payload, webhook_logs.headers,
	       webhook_logs.status_code, webhook_logs.response_body, webhook_logs.error_message,
	       webhook_logs.retry_count, webhook_logs.next_retry_at, webhook_logs.claimed_at,
	       webhook_logs.processed_at, webhook_logs.latency_ms, webhook_logs.created_at
	FROM webhook_logs`

func scanWebhookLog(s interface {
	Scan(dest ...interface{}) error
}) (*models.WebhookLog, error) {
	var lg models.WebhookLog
	var transactionID, headersRaw, responseBody, errorMessage sql.NullString
	var statusCode sql.NullInt64
	var nextRetryAt, claimedAt, processedAt, latencyMS sql.NullInt64

	err := s.Scan(
		&lg.ID, &lg.AppID, &transactionID,
		&lg.EventID, &lg.EventType, &lg.Direction,
		&lg.Status, &lg.Payload, &headersRaw,
		&statusCode, &responseBody, &errorMessage,
		&lg.RetryCount, &nextRetryAt, &claimedAt,
		&processedAt, &latencyMS, &lg.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	if transactionID.Valid {
		val := transactionID.String
		lg.TransactionID = &val
	}
	if statusCode.Valid {
		val := int(statusCode.Int64)
		lg.StatusCode = &val
	}
	if responseBody.Valid {
		val := responseBody.String
		lg.ResponseBody = &val
	}
	if errorMessage.Valid {
		val := errorMessage.String
		lg.ErrorMessage = &val
	}
	if nextRetryAt.Valid {
		val := nextRetryAt.Int64
		lg.NextRetryAt = &val
	}
	if claimedAt.Valid {
		val := claimedAt.Int64
		lg.ClaimedAt = &val
	}
	if processedAt.Valid {
		val := processedAt.Int64
		lg.ProcessedAt = &val
	}
	if latencyMS.Valid {
		val := latencyMS.Int64
		lg.LatencyMS = &val
	}
	if headersRaw.Valid && headersRaw.String != "" {
		json.Unmarshal([]byte(headersRaw.String), &lg.Headers)
	}

	return &lg, nil
}
