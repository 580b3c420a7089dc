package sessions

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	pkgerrors "payhub/internal/pkg/errors"
	"payhub/internal/pkg/validator"
	"payhub/internal/platform/models"
	"payhub/internal/platform/repositories"
)

// Repo is the narrow session store surface the engine needs. Implemented by
// repositories.PayupRepository; faked in tests.
type Repo interface {
	Create(p *models.Payup) error
	GetByID(id string) (*models.Payup, error)
	Transition(id string, from []models.PayupStatus, to models.PayupStatus, now int64) error
	ListExpired(now int64, limit int) ([]*models.Payup, error)
}

type Config struct {
	DefaultTTL time.Duration
}

// Service owns the Payup lifecycle. Every status write in the system funnels
// through Transition; nothing else touches payups.status.
type Service struct {
	repo Repo
	cfg  Config
	now  func() time.Time
}

func NewService(repo Repo, cfg Config) *Service {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 30 * time.Minute
	}
	return &Service{repo: repo, cfg: cfg, now: time.Now}
}

type CreateInput struct {
	Amount        int64
	Currency      string
	TTL           time.Duration
	CustomerName  string
	CustomerEmail string
	ReturnURL     string
	CancelURL     string
	Metadata      map[string]interface{}
}

// Create opens a pending payment session for the app. The session expires at
// now + ttl; ttl falls back to the app's default_ttl_seconds metadata, then
// to the configured default.
func (s *Service) Create(app *models.App, input CreateInput) (*models.Payup, error) {
	if input.Amount <= 0 {
		return nil, &pkgerrors.ValidationError{Field: "amount", Reason: "must be a positive integer in minor units"}
	}

	currency, err := validator.NormalizeCurrency(input.Currency)
	if err != nil {
		return nil, &pkgerrors.ValidationError{Field: "currency", Reason: err.Error()}
	}

	if input.TTL < 0 {
		return nil, &pkgerrors.ValidationError{Field: "ttl", Reason: "must be positive"}
	}
	ttl := input.TTL
	if ttl == 0 {
		ttl = s.appDefaultTTL(app)
	}

	if input.CustomerEmail != "" && !strings.Contains(input.CustomerEmail, "@") {
		return nil, &pkgerrors.ValidationError{Field: "customer_email", Reason: "invalid email address"}
	}
	if err := checkURL("return_url", input.ReturnURL); err != nil {
		return nil, err
	}
	if err := checkURL("cancel_url", input.CancelURL); err != nil {
		return nil, err
	}

	now := s.now().Unix()
	payup := &models.Payup{
		ID:            "pay_" + uuid.New().String(),
		AppID:         app.ID,
		Amount:        input.Amount,
		Currency:      currency,
		Status:        models.PayupPending,
		CustomerName:  input.CustomerName,
		CustomerEmail: input.CustomerEmail,
		ReturnURL:     input.ReturnURL,
		CancelURL:     input.CancelURL,
		Metadata:      input.Metadata,
		ExpiresAt:     now + int64(ttl.Seconds()),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Create(payup); err != nil {
		return nil, err
	}
	return payup, nil
}

func (s *Service) Get(id string) (*models.Payup, error) {
	payup, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if payup == nil {
		return nil, &pkgerrors.NotFoundError{Resource: "payup", ID: id}
	}
	return payup, nil
}

// Transition performs the compare-and-swap status change and returns the
// updated session. ConflictError means the current status was not in from;
// settlement and expiry both rely on this to lose races cleanly.
func (s *Service) Transition(id string, from []models.PayupStatus, to models.PayupStatus) (*models.Payup, error) {
	err := s.repo.Transition(id, from, to, s.now().Unix())
	if err != nil {
		if errors.Is(err, repositories.ErrTransitionConflict) {
			payup, getErr := s.repo.GetByID(id)
			if getErr != nil {
				return nil, getErr
			}
			if payup == nil {
				return nil, &pkgerrors.NotFoundError{Resource: "payup", ID: id}
			}
			return nil, &pkgerrors.ConflictError{Reason: "payup " + id + " is " + string(payup.Status) + ", cannot transition to " + string(to)}
		}
		return nil, err
	}
	return s.Get(id)
}

// Cancel is the dashboard action: abandon a session before settlement.
func (s *Service) Cancel(id string) (*models.Payup, error) {
	return s.Transition(id, models.SettleableStatuses, models.PayupCancelled)
}

func (s *Service) appDefaultTTL(app *models.App) time.Duration {
	if app != nil && app.Metadata != nil {
		if raw, ok := app.Metadata["default_ttl_seconds"]; ok {
			if secs, ok := raw.(float64); ok && secs > 0 {
				return time.Duration(secs) * time.Second
			}
		}
	}
	return s.cfg.DefaultTTL
}

func checkURL(field, raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return &pkgerrors.ValidationError{Field: field, Reason: "must be an absolute http(s) url"}
	}
	return nil
}
