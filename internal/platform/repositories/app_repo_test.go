package repositories

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func appColumns() []string {
	return []string{"id", "name", "provider", "api_key_prefix", "api_key_hash", "webhook_secret",
		"webhook_url", "active", "notify_on_expiry", "metadata", "created_at", "updated_at"}
}

func TestAppGetByKeyPrefix(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewAppRepository(db)

	rows := sqlmock.NewRows(appColumns()).
		AddRow("app_123", "Test App", "payme", "pk_abcdef123", "hash", "whsec_x",
			"https://example.com/hook", true, false, `{"plan":"pro"}`, 1700000000, 1700000000)

	mock.ExpectQuery("SELECT (.+) FROM apps WHERE api_key_prefix = ?").
		WithArgs("pk_abcdef123").
		WillReturnRows(rows)

	app, err := repo.GetByKeyPrefix("pk_abcdef123")
	if err != nil {
		t.Fatalf("GetByKeyPrefix failed: %v", err)
	}
	if app == nil {
		t.Fatal("expected app, got nil")
	}
	if app.ID != "app_123" {
		t.Errorf("ID = %s, want app_123", app.ID)
	}
	if !app.Active {
		t.Error("expected app to be active")
	}
	if app.WebhookURL != "https://example.com/hook" {
		t.Errorf("WebhookURL = %s", app.WebhookURL)
	}
	if app.Metadata["plan"] != "pro" {
		t.Errorf("Metadata = %v", app.Metadata)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestAppGetByKeyPrefixNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewAppRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM apps WHERE api_key_prefix = ?").
		WithArgs("pk_unknown12").
		WillReturnError(sql.ErrNoRows)

	app, err := repo.GetByKeyPrefix("pk_unknown12")
	if err != nil {
		t.Errorf("expected nil error for missing app, got %v", err)
	}
	if app != nil {
		t.Errorf("expected nil app, got %v", app)
	}
}

func TestAppRotateAPIKey(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewAppRepository(db)

	mock.ExpectExec("UPDATE apps SET api_key_prefix = (.+), api_key_hash = (.+), updated_at = (.+) WHERE id = ?").
		WithArgs("pk_newprefix", "newhash", sqlmock.AnyArg(), "app_123").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.RotateAPIKey("app_123", "pk_newprefix", "newhash"); err != nil {
		t.Fatalf("RotateAPIKey failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
