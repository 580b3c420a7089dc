package sessions

import (
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"payhub/internal/platform/models"
	"payhub/internal/platform/repositories"
)

// Notifier enqueues an outbound webhook. Implemented by the dispatcher.
type Notifier interface {
	Enqueue(appID, eventType string, transactionID *string, resource map[string]interface{}) error
}

// AppSource looks up tenant records.
type AppSource interface {
	GetByID(id string) (*models.App, error)
}

// Reaper sweeps abandoned pending sessions into expired. It uses the same
// CAS as settlement, so a settlement landing mid-sweep always wins.
type Reaper struct {
	repo     Repo
	apps     AppSource
	notifier Notifier
	batch    int
}

func NewReaper(repo Repo, apps AppSource, notifier Notifier, batch int) *Reaper {
	if batch <= 0 {
		batch = 500
	}
	return &Reaper{repo: repo, apps: apps, notifier: notifier, batch: batch}
}

// Sweep expires every pending session whose expires_at has passed and
// returns the number of sessions transitioned.
func (r *Reaper) Sweep(now time.Time) (int, error) {
	due, err := r.repo.ListExpired(now.Unix(), r.batch)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, payup := range due {
		err := r.repo.Transition(payup.ID, []models.PayupStatus{models.PayupPending}, models.PayupExpired, now.Unix())
		if err != nil {
			if errors.Is(err, repositories.ErrTransitionConflict) {
				// A settlement or cancellation got there first.
				continue
			}
			return expired, err
		}
		expired++

		log.Info().Str("payup_id", payup.ID).Str("app_id", payup.AppID).Msg("payup expired")
		r.notify(payup, now.Unix())
	}
	return expired, nil
}

// notify enqueues payup.expired only for apps that opted in.
func (r *Reaper) notify(payup *models.Payup, now int64) {
	if r.notifier == nil || r.apps == nil {
		return
	}
	app, err := r.apps.GetByID(payup.AppID)
	if err != nil || app == nil || !app.Active || !app.NotifyOnExpiry {
		return
	}

	snapshot := *payup
	snapshot.Status = models.PayupExpired
	snapshot.CompletedAt = &now
	if err := r.notifier.Enqueue(app.ID, models.EventPayupExpired, nil, snapshot.Resource()); err != nil {
		log.Error().Err(err).Str("payup_id", payup.ID).Msg("failed to enqueue expiry webhook")
	}
}
