package repositories

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"payhub/internal/platform/models"
)

type AppRepository struct {
	db *sql.DB
}

func NewAppRepository(db *sql.DB) *AppRepository {
	return &AppRepository{db: db}
}

func (r *AppRepository) Create(app *models.App) error {
	if app.ID == "" {
		app.ID = "app_" + uuid.New().String()
	}
	now := time.Now().Unix()
	app.CreatedAt = now
	app.UpdatedAt = now

	metaJSON, err := json.Marshal(app.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO apps (id, name, provider, api_key_prefix, api_key_hash, webhook_secret, webhook_url, active, notify_on_expiry, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.Exec(query, app.ID, app.Name, app.Provider, app.APIKeyPrefix, app.APIKeyHash,
		app.WebhookSecret, app.WebhookURL, app.Active, app.NotifyOnExpiry, string(metaJSON), app.CreatedAt, app.UpdatedAt)
	return err
}

func (r *AppRepository) GetByID(id string) (*models.App, error) {
	row := r.db.QueryRow(appSelect+` WHERE id = ?`, id)
	return scanApp(row)
}

func (r *AppRepository) GetByKeyPrefix(prefix string) (*models.App, error) {
	row := r.db.QueryRow(appSelect+` WHERE api_key_prefix = ?`, prefix)
	return scanApp(row)
}

func (r *AppRepository) SetActive(id string, active bool) error {
	_, err := r.db.Exec(`UPDATE apps SET active = ?, updated_at = ? WHERE id = ?`, active, time.Now().Unix(), id)
	return err
}

func (r *AppRepository) SetNotifyOnExpiry(id string, notify bool) error {
	_, err := r.db.Exec(`UPDATE apps SET notify_on_expiry = ?, updated_at = ? WHERE id = ?`, notify, time.Now().Unix(), id)
	return err
}

// RotateWebhookSecret replaces the signing secret in one statement so the
// prior value is never valid alongside the new one.
func (r *AppRepository) RotateWebhookSecret(id, secret string) error {
	_, err := r.db.Exec(`UPDATE apps SET webhook_secret = ?, updated_at = ? WHERE id = ?`, secret, time.Now().Unix(), id)
	return err
}

// RotateAPIKey atomically invalidates the previous credential.
func (r *AppRepository) RotateAPIKey(id, prefix, hash string) error {
	_, err := r.db.Exec(`UPDATE apps SET api_key_prefix = ?, api_key_hash = ?, updated_at = ? WHERE id = ?`,
		prefix, hash, time.Now().Unix(), id)
	return err
}

const appSelect = `SELECT id, name, provider, api_key_prefix, api_key_hash, webhook_secret, webhook_url, active, notify_on_expiry, metadata, created_at, updated_at FROM apps`

func scanApp(row *sql.Row) (*models.App, error) {
	app := &models.App{}
	var webhookURL sql.NullString
	var metaRaw sql.NullString

	err := row.Scan(&app.ID, &app.Name, &app.Provider, &app.APIKeyPrefix, &app.APIKeyHash,
		&app.WebhookSecret, &webhookURL, &app.Active, &app.NotifyOnExpiry, &metaRaw, &app.CreatedAt, &app.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	if webhookURL.Valid {
		app.WebhookURL = webhookURL.String
	}
	if metaRaw.Valid && metaRaw.String != "" {
		json.Unmarshal([]byte(metaRaw.String), &app.Metadata)
	}

	return app, nil
}
