package webhooks

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"payhub/internal/platform/models"
)

type memLogStore struct {
	mu   sync.Mutex
	rows []*models.WebhookLog
	seq  int
}

func (s *memLogStore) Insert(lg *models.WebhookLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	if lg.ID == "" {
		lg.ID = fmt.Sprintf("whl_%d", s.seq)
	}
	s.rows = append(s.rows, lg)
	return nil
}

func (s *memLogStore) UpdateOutcome(lg *models.WebhookLog) error {
	return nil
}

func (s *memLogStore) RecordRetry(lg, next *models.WebhookLog) error {
	return s.Insert(next)
}

func (s *memLogStore) ClaimDue(now, lease int64, limit int) ([]*models.WebhookLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var claimed []*models.WebhookLog
	for _, lg := range s.rows {
		if len(claimed) >= limit {
			break
		}
		if lg.Direction != models.DirectionOutbound {
			continue
		}
		due := lg.Status == models.DeliveryScheduled && lg.NextRetryAt != nil && *lg.NextRetryAt <= now
		stale := lg.Status == models.DeliveryInFlight && lg.ClaimedAt != nil && *lg.ClaimedAt <= now-lease
		if due || stale {
			lg.Status = models.DeliveryInFlight
			claimedAt := now
			lg.ClaimedAt = &claimedAt
			claimed = append(claimed, lg)
		}
	}
	return claimed, nil
}

func (s *memLogStore) snapshot() []*models.WebhookLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.WebhookLog, len(s.rows))
	copy(out, s.rows)
	return out
}

type memApps struct {
	mu   sync.Mutex
	apps map[string]*models.App
	err  error
}

func (a *memApps) GetByID(id string) (*models.App, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return nil, a.err
	}
	return a.apps[id], nil
}

func (a *memApps) setErr(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.err = err
}

type noTemplates struct{}

func (noTemplates) FindForEvent(appID, eventType string) (*models.WebhookTemplate, error) {
	return nil, nil
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestDispatcher(cfg Config, app *models.App) (*Dispatcher, *memLogStore, *fakeClock) {
	store := &memLogStore{}
	apps := &memApps{apps: map[string]*models.App{app.ID: app}}
	clock := &fakeClock{t: time.Unix(1700000000, 0)}

	d := NewDispatcher(cfg, store, apps, noTemplates{})
	d.now = clock.Now
	return d, store, clock
}

func activeApp(url string) *models.App {
	return &models.App{
		ID:            "app_1",
		Name:          "Test App",
		WebhookSecret: "whsec_test",
		WebhookURL:    url,
		Active:        true,
	}
}

func TestEnqueueSchedulesDurableRow(t *testing.T) {
	d, store, clock := newTestDispatcher(Config{}, activeApp("http://example.com/hook"))

	txnID := "txn_1"
	err := d.Enqueue("app_1", models.EventTransactionSettled, &txnID, map[string]interface{}{"id": "txn_1"})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	rows := store.snapshot()
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	lg := rows[0]

	if lg.Status != models.DeliveryScheduled {
		t.Errorf("status = %s, want scheduled", lg.Status)
	}
	if lg.RetryCount != 0 {
		t.Errorf("retry_count = %d, want 0", lg.RetryCount)
	}
	if lg.Direction != models.DirectionOutbound {
		t.Errorf("direction = %s, want outbound", lg.Direction)
	}
	if lg.NextRetryAt == nil || *lg.NextRetryAt != clock.Now().Unix() {
		t.Errorf("next_retry_at = %v, want %d", lg.NextRetryAt, clock.Now().Unix())
	}
	if !strings.HasPrefix(lg.EventID, "evt_") {
		t.Errorf("event_id = %s, want evt_ prefix", lg.EventID)
	}
	if !json.Valid(lg.Payload) {
		t.Errorf("payload is not valid JSON: %s", lg.Payload)
	}
}

func TestEnqueueSkipsInactiveApp(t *testing.T) {
	app := activeApp("http://example.com/hook")
	app.Active = false
	d, store, _ := newTestDispatcher(Config{}, app)

	if err := d.Enqueue("app_1", models.EventTransactionSettled, nil, map[string]interface{}{"id": "x"}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if rows := store.snapshot(); len(rows) != 0 {
		t.Errorf("expected no rows for inactive app, got %d", len(rows))
	}
}

func TestEnqueueSkipsAppWithoutURL(t *testing.T) {
	d, store, _ := newTestDispatcher(Config{}, activeApp(""))

	if err := d.Enqueue("app_1", models.EventTransactionSettled, nil, map[string]interface{}{"id": "x"}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if rows := store.snapshot(); len(rows) != 0 {
		t.Errorf("expected no rows for app without url, got %d", len(rows))
	}
}

func TestEnqueueWithoutSecretRecordsExhausted(t *testing.T) {
	app := activeApp("http://example.com/hook")
	app.WebhookSecret = ""
	d, store, _ := newTestDispatcher(Config{}, app)

	if err := d.Enqueue("app_1", models.EventTransactionSettled, nil, map[string]interface{}{"id": "x"}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	rows := store.snapshot()
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].Status != models.DeliveryExhausted {
		t.Errorf("status = %s, want exhausted", rows[0].Status)
	}
	if string(rows[0].Payload) != "{}" {
		t.Errorf("payload = %s, want {}", rows[0].Payload)
	}
	if rows[0].ErrorMessage == nil {
		t.Error("expected error_message to be set")
	}
}

func TestDeliverySignedAndRecorded(t *testing.T) {
	var gotSignature, gotEvent, gotDelivery string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature = r.Header.Get(SignatureHeader)
		gotEvent = r.Header.Get(EventHeader)
		gotDelivery = r.Header.Get(DeliveryHeader)
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d, store, clock := newTestDispatcher(Config{}, activeApp(srv.URL))

	if err := d.Enqueue("app_1", models.EventTransactionSettled, nil, map[string]interface{}{"id": "txn_1"}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	claimed, err := d.RunScheduledRetries(clock.Now())
	if err != nil {
		t.Fatalf("RunScheduledRetries failed: %v", err)
	}
	if claimed != 1 {
		t.Fatalf("claimed = %d, want 1", claimed)
	}
	d.Drain()

	rows := store.snapshot()
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	lg := rows[0]

	if lg.Status != models.DeliveryDelivered {
		t.Errorf("status = %s, want delivered", lg.Status)
	}
	if lg.StatusCode == nil || *lg.StatusCode != http.StatusOK {
		t.Errorf("status_code = %v, want 200", lg.StatusCode)
	}
	if lg.LatencyMS == nil {
		t.Error("expected latency_ms to be recorded")
	}

	want := "sha256=" + Sign("whsec_test", gotBody)
	if gotSignature != want {
		t.Errorf("signature = %s, want %s", gotSignature, want)
	}
	if gotEvent != models.EventTransactionSettled {
		t.Errorf("event header = %s", gotEvent)
	}
	if gotDelivery != lg.EventID {
		t.Errorf("delivery header = %s, want %s", gotDelivery, lg.EventID)
	}
}

// deliverAll drives the poller loop with a jumping clock until no scheduled
// work remains.
func deliverAll(t *testing.T, d *Dispatcher, clock *fakeClock, rounds int) {
	t.Helper()
	for i := 0; i < rounds; i++ {
		if _, err := d.RunScheduledRetries(clock.Now()); err != nil {
			t.Fatalf("RunScheduledRetries failed: %v", err)
		}
		d.Drain()
		clock.Advance(2 * time.Hour)
	}
}

func TestDeliveryRetriesUntilExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := Config{MaxAttempts: 3, BackoffBase: 10 * time.Second, BackoffMax: time.Hour}
	d, store, clock := newTestDispatcher(cfg, activeApp(srv.URL))

	if err := d.Enqueue("app_1", models.EventTransactionSettled, nil, map[string]interface{}{"id": "txn_1"}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	deliverAll(t, d, clock, 5)

	rows := store.snapshot()
	if len(rows) != 3 {
		t.Fatalf("expected 3 attempt rows, got %d", len(rows))
	}

	for i, lg := range rows {
		if lg.RetryCount != i {
			t.Errorf("row %d retry_count = %d, want %d", i, lg.RetryCount, i)
		}
		if lg.EventID != rows[0].EventID {
			t.Errorf("row %d event_id = %s, want %s", i, lg.EventID, rows[0].EventID)
		}
	}

	if rows[0].Status != models.DeliveryRetrying || rows[1].Status != models.DeliveryRetrying {
		t.Errorf("intermediate statuses = %s, %s, want retrying", rows[0].Status, rows[1].Status)
	}
	if rows[2].Status != models.DeliveryExhausted {
		t.Errorf("final status = %s, want exhausted", rows[2].Status)
	}
	if *rows[1].NextRetryAt <= *rows[0].NextRetryAt {
		t.Errorf("next_retry_at not increasing: %d then %d", *rows[0].NextRetryAt, *rows[1].NextRetryAt)
	}
}

func TestDeliveryRecoversMidRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := Config{MaxAttempts: 8, BackoffBase: 10 * time.Second, BackoffMax: time.Hour}
	d, store, clock := newTestDispatcher(cfg, activeApp(srv.URL))

	if err := d.Enqueue("app_1", models.EventTransactionSettled, nil, map[string]interface{}{"id": "txn_1"}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	deliverAll(t, d, clock, 6)

	rows := store.snapshot()
	if len(rows) != 3 {
		t.Fatalf("expected 3 attempt rows, got %d", len(rows))
	}
	if rows[2].Status != models.DeliveryDelivered {
		t.Errorf("final status = %s, want delivered", rows[2].Status)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("server saw %d calls, want 3", calls)
	}
}

func TestOrphanedClaimIsRedelivered(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d, store, clock := newTestDispatcher(Config{ClaimLease: time.Minute}, activeApp(srv.URL))

	if err := d.Enqueue("app_1", models.EventTransactionSettled, nil, map[string]interface{}{"id": "txn_1"}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	// A worker claims the row and dies before recording any outcome.
	claimed, err := store.ClaimDue(clock.Now().Unix(), 60, 10)
	if err != nil || len(claimed) != 1 {
		t.Fatalf("ClaimDue = %d rows, %v, want 1 row", len(claimed), err)
	}

	// Within the lease the claim is honored.
	n, err := d.RunScheduledRetries(clock.Now())
	if err != nil {
		t.Fatalf("RunScheduledRetries failed: %v", err)
	}
	d.Drain()
	if n != 0 {
		t.Fatalf("claimed %d rows inside the lease, want 0", n)
	}

	// Past the lease the orphaned attempt is picked up and delivered.
	clock.Advance(2 * time.Minute)
	n, err = d.RunScheduledRetries(clock.Now())
	if err != nil {
		t.Fatalf("RunScheduledRetries failed: %v", err)
	}
	d.Drain()
	if n != 1 {
		t.Fatalf("reclaimed %d rows past the lease, want 1", n)
	}

	rows := store.snapshot()
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].Status != models.DeliveryDelivered {
		t.Errorf("status = %s, want delivered", rows[0].Status)
	}
}

func TestAppLookupFailureIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := &memLogStore{}
	apps := &memApps{apps: map[string]*models.App{"app_1": activeApp(srv.URL)}}
	clock := &fakeClock{t: time.Unix(1700000000, 0)}

	d := NewDispatcher(Config{MaxAttempts: 8, BackoffBase: 10 * time.Second, BackoffMax: time.Hour}, store, apps, noTemplates{})
	d.now = clock.Now

	if err := d.Enqueue("app_1", models.EventTransactionSettled, nil, map[string]interface{}{"id": "txn_1"}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	// The store hiccups during the first attempt.
	apps.setErr(errors.New("database is locked"))
	if _, err := d.RunScheduledRetries(clock.Now()); err != nil {
		t.Fatalf("RunScheduledRetries failed: %v", err)
	}
	d.Drain()

	rows := store.snapshot()
	if len(rows) != 2 {
		t.Fatalf("expected attempt row plus scheduled retry, got %d rows", len(rows))
	}
	if rows[0].Status != models.DeliveryRetrying {
		t.Errorf("attempt status = %s, want retrying", rows[0].Status)
	}
	if rows[0].ErrorMessage == nil || !strings.Contains(*rows[0].ErrorMessage, "app lookup failed") {
		t.Errorf("error_message = %v, want app lookup failure", rows[0].ErrorMessage)
	}
	if rows[1].Status != models.DeliveryScheduled || rows[1].RetryCount != 1 {
		t.Errorf("retry row = %s/%d, want scheduled/1", rows[1].Status, rows[1].RetryCount)
	}

	// Once the store recovers the event is delivered.
	apps.setErr(nil)
	clock.Advance(2 * time.Hour)
	if _, err := d.RunScheduledRetries(clock.Now()); err != nil {
		t.Fatalf("RunScheduledRetries failed: %v", err)
	}
	d.Drain()

	rows = store.snapshot()
	if rows[1].Status != models.DeliveryDelivered {
		t.Errorf("final status = %s, want delivered", rows[1].Status)
	}
}
