package repositories

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"payhub/internal/platform/models"
)

type TemplateRepository struct {
	db *sql.DB
}

func NewTemplateRepository(db *sql.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// Create inserts a template. A default template demotes any previous default
// for the same (app, event_type) in the same transaction, keeping at most one.
func (r *TemplateRepository) Create(tpl *models.WebhookTemplate) error {
	if tpl.ID == "" {
		tpl.ID = "tpl_" + uuid.New().String()
	}
	now := time.Now().Unix()
	tpl.CreatedAt = now
	tpl.UpdatedAt = now

	headersJSON, err := json.Marshal(tpl.Headers)
	if err != nil {
		return err
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if tpl.IsDefault {
		_, err = tx.Exec(`UPDATE webhook_templates SET is_default = 0, updated_at = ? WHERE app_id = ? AND event_type = ? AND is_default = 1`,
			now, tpl.AppID, tpl.EventType)
		if err != nil {
			return err
		}
	}

	_, err = tx.Exec(`
		INSERT INTO webhook_templates (id, app_id, name, event_type, is_default, format, headers, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, tpl.ID, tpl.AppID, tpl.Name, tpl.EventType, tpl.IsDefault, tpl.Format, string(headersJSON), tpl.CreatedAt, tpl.UpdatedAt)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// FindForEvent returns the default template for (app, event_type), else the
// most recently updated match, else nil.
func (r *TemplateRepository) FindForEvent(appID, eventType string) (*models.WebhookTemplate, error) {
	query := templateSelect + ` WHERE app_id = ? AND event_type = ? ORDER BY is_default DESC, updated_at DESC LIMIT 1`
	row := r.db.QueryRow(query, appID, eventType)
	tpl, err := scanTemplate(row)
	if err != nil {
		return nil, err
	}
	return tpl, nil
}

func (r *TemplateRepository) ListByApp(appID string) ([]*models.WebhookTemplate, error) {
	rows, err := r.db.Query(templateSelect+` WHERE app_id = ? ORDER BY created_at DESC`, appID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []*models.WebhookTemplate
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, tpl)
	}
	return templates, rows.Err()
}

const templateSelect = `SELECT id, app_id, name, event_type, is_default, format, headers, created_at, updated_at FROM webhook_templates`

func scanTemplate(s interface {
	Scan(dest ...interface{}) error
}) (*models.WebhookTemplate, error) {
	var t models.WebhookTemplate
	var headersRaw sql.NullString

	err := s.Scan(&t.ID, &t.AppID, &t.Name, &t.EventType, &t.IsDefault, &t.Format, &headersRaw, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	if headersRaw.Valid && headersRaw.String != "" {
		json.Unmarshal([]byte(headersRaw.String), &t.Headers)
	}

	return &t, nil
}
