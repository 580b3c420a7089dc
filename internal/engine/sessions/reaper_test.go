package sessions

import (
	"testing"
	"time"

	"payhub/internal/platform/models"
)

type recordingNotifier struct {
	events []string
}

func (n *recordingNotifier) Enqueue(appID, eventType string, transactionID *string, resource map[string]interface{}) error {
	n.events = append(n.events, eventType)
	return nil
}

type fakeApps struct {
	apps map[string]*models.App
}

func (f *fakeApps) GetByID(id string) (*models.App, error) {
	return f.apps[id], nil
}

func TestSweepExpiresOverduePending(t *testing.T) {
	repo := newFakeRepo()
	now := time.Unix(1700000000, 0)

	repo.payups["pay_due"] = &models.Payup{
		ID: "pay_due", AppID: "app_1", Status: models.PayupPending, ExpiresAt: now.Unix() - 60,
	}
	repo.payups["pay_future"] = &models.Payup{
		ID: "pay_future", AppID: "app_1", Status: models.PayupPending, ExpiresAt: now.Unix() + 600,
	}

	apps := &fakeApps{apps: map[string]*models.App{
		"app_1": {ID: "app_1", Active: true, NotifyOnExpiry: true, WebhookURL: "http://example.com"},
	}}
	notifier := &recordingNotifier{}

	reaper := NewReaper(repo, apps, notifier, 100)
	expired, err := reaper.Sweep(now)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	if expired != 1 {
		t.Errorf("expired = %d, want 1", expired)
	}
	if repo.payups["pay_due"].Status != models.PayupExpired {
		t.Errorf("due payup status = %s, want expired", repo.payups["pay_due"].Status)
	}
	if repo.payups["pay_future"].Status != models.PayupPending {
		t.Errorf("future payup status = %s, want pending", repo.payups["pay_future"].Status)
	}
	if len(notifier.events) != 1 || notifier.events[0] != models.EventPayupExpired {
		t.Errorf("notifier events = %v, want one payup.expired", notifier.events)
	}
}

func TestSweepLosesRaceToSettlement(t *testing.T) {
	repo := newFakeRepo()
	now := time.Unix(1700000000, 0)

	// Expired per the listing, but settled before the CAS lands.
	repo.payups["pay_1"] = &models.Payup{
		ID: "pay_1", AppID: "app_1", Status: models.PayupPending, ExpiresAt: now.Unix() - 60,
	}
	listed := repo.payups["pay_1"]

	race := &racingRepo{fakeRepo: repo, flip: listed}
	notifier := &recordingNotifier{}
	reaper := NewReaper(race, &fakeApps{apps: map[string]*models.App{}}, notifier, 100)

	expired, err := reaper.Sweep(now)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	if expired != 0 {
		t.Errorf("expired = %d, want 0", expired)
	}
	if listed.Status != models.PayupCompleted {
		t.Errorf("payup status = %s, want completed", listed.Status)
	}
	if len(notifier.events) != 0 {
		t.Errorf("notifier events = %v, want none", notifier.events)
	}
}

// racingRepo settles flip between the listing and the transition, the way a
// concurrent settlement callback would.
type racingRepo struct {
	*fakeRepo
	flip *models.Payup
}

func (r *racingRepo) ListExpired(now int64, limit int) ([]*models.Payup, error) {
	due, err := r.fakeRepo.ListExpired(now, limit)
	r.flip.Status = models.PayupCompleted
	return due, err
}

func TestSweepSkipsNotificationWhenNotOptedIn(t *testing.T) {
	repo := newFakeRepo()
	now := time.Unix(1700000000, 0)

	repo.payups["pay_1"] = &models.Payup{
		ID: "pay_1", AppID: "app_1", Status: models.PayupPending, ExpiresAt: now.Unix() - 60,
	}

	apps := &fakeApps{apps: map[string]*models.App{
		"app_1": {ID: "app_1", Active: true, NotifyOnExpiry: false},
	}}
	notifier := &recordingNotifier{}

	reaper := NewReaper(repo, apps, notifier, 100)
	expired, err := reaper.Sweep(now)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	if expired != 1 {
		t.Errorf("expired = %d, want 1", expired)
	}
	if len(notifier.events) != 0 {
		t.Errorf("notifier events = %v, want none", notifier.events)
	}
}
