package webhooks

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	pkgerrors "payhub/internal/pkg/errors"
	"payhub/internal/platform/models"
)

// Signature and correlation headers on every outbound delivery.
const (
	SignatureHeader = "X-Payhub-Signature"
	EventHeader     = "X-Payhub-Event"
	DeliveryHeader  = "X-Payhub-Delivery"
)

// Config holds every delivery knob. Passed in at construction so tests and
// per-deployment tuning override the defaults.
type Config struct {
	MaxAttempts       int
	BackoffBase       time.Duration
	BackoffMax        time.Duration
	JitterFraction    float64
	DeliveryTimeout   time.Duration
	ClaimLease        time.Duration
	WorkerCount       int
	PollBatch         int
	ResponseBodyLimit int
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 8
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 30 * time.Second
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = time.Hour
	}
	if c.DeliveryTimeout <= 0 {
		c.DeliveryTimeout = 10 * time.Second
	}
	if c.ClaimLease <= 0 {
		c.ClaimLease = 5 * time.Minute
	}
	if c.WorkerCount <= 0 {
		c.WorkerCount = 16
	}
	if c.PollBatch <= 0 {
		c.PollBatch = 100
	}
	if c.ResponseBodyLimit <= 0 {
		c.ResponseBodyLimit = 4096
	}
	return c
}

// LogStore persists delivery attempts. Implemented by
// repositories.WebhookLogRepository.
type LogStore interface {
	Insert(lg *models.WebhookLog) error
	UpdateOutcome(lg *models.WebhookLog) error
	RecordRetry(lg, next *models.WebhookLog) error
	ClaimDue(now, lease int64, limit int) ([]*models.WebhookLog, error)
}

type AppSource interface {
	GetByID(id string) (*models.App, error)
}

// Dispatcher delivers signed webhooks with bounded retries, one WebhookLog
// row per attempt. Per-attempt states: scheduled -> in_flight ->
// delivered | retrying | exhausted; a retrying attempt inserts the next
// scheduled row, so at most one row per event is ever scheduled and attempts
// of one event cannot overlap.
type Dispatcher struct {
	cfg       Config
	logs      LogStore
	apps      AppSource
	templates TemplateSource
	client    *http.Client
	sem       chan struct{}
	wg        sync.WaitGroup
	now       func() time.Time
}

func NewDispatcher(cfg Config, logs LogStore, apps AppSource, templates TemplateSource) *Dispatcher {
	cfg = cfg.withDefaults()
	return &Dispatcher{
		cfg:       cfg,
		logs:      logs,
		apps:      apps,
		templates: templates,
		client:    &http.Client{Timeout: cfg.DeliveryTimeout},
		sem:       make(chan struct{}, cfg.WorkerCount),
		now:       time.Now,
	}
}

// Enqueue renders the event and schedules attempt 0 as a durable row with
// next_retry_at = now. Rendering failures are deterministic, so they are
// recorded exhausted immediately instead of entering the retry loop.
func (d *Dispatcher) Enqueue(appID, eventType string, transactionID *string, resource map[string]interface{}) error {
	app, err := d.apps.GetByID(appID)
	if err != nil {
		return err
	}
	if app == nil {
		return &pkgerrors.NotFoundError{Resource: "app", ID: appID}
	}
	if !app.Active {
		log.Debug().Str("app_id", appID).Str("event_type", eventType).Msg("app inactive, webhook not enqueued")
		return nil
	}
	if app.WebhookURL == "" {
		log.Debug().Str("app_id", appID).Str("event_type", eventType).Msg("app has no webhook url, webhook not enqueued")
		return nil
	}

	now := d.now().Unix()
	ev := Event{
		ID:        "evt_" + uuid.New().String(),
		Type:      eventType,
		Timestamp: now,
		Resource:  resource,
	}

	lg := &models.WebhookLog{
		AppID:         appID,
		TransactionID: transactionID,
		EventID:       ev.ID,
		EventType:     eventType,
		Direction:     models.DirectionOutbound,
		RetryCount:    0,
	}

	if app.WebhookSecret == "" {
		return d.insertDead(lg, now, &pkgerrors.CryptoError{Reason: "app " + appID + " has no webhook secret"})
	}

	tpl := resolveTemplate(d.templates, appID, eventType)
	body, headers, err := Render(tpl, ev)
	if err != nil {
		return d.insertDead(lg, now, err)
	}

	lg.Status = models.DeliveryScheduled
	lg.Payload = body
	lg.Headers = headers
	lg.NextRetryAt = &now
	return d.logs.Insert(lg)
}

// insertDead records a permanently failed event so tenant operators can see
// it; there is nothing to retry.
func (d *Dispatcher) insertDead(lg *models.WebhookLog, now int64, cause error) error {
	msg := cause.Error()
	lg.Status = models.DeliveryExhausted
	lg.Payload = []byte("{}")
	lg.ErrorMessage = &msg
	lg.ProcessedAt = &now

	log.Error().Err(cause).Str("app_id", lg.AppID).Str("event_type", lg.EventType).Msg("webhook dead on enqueue")
	return d.logs.Insert(lg)
}

// RunScheduledRetries claims every due row and hands each to the worker
// pool. Due covers scheduled rows whose retry time has come and in_flight
// rows whose claim outlived the lease, so attempts orphaned by a worker
// crash are picked up again. It returns as soon as the work is dispatched;
// slow deliveries never block the poller.
func (d *Dispatcher) RunScheduledRetries(now time.Time) (int, error) {
	claimed, err := d.logs.ClaimDue(now.Unix(), int64(d.cfg.ClaimLease.Seconds()), d.cfg.PollBatch)
	for _, lg := range claimed {
		d.wg.Add(1)
		go func(lg *models.WebhookLog) {
			defer d.wg.Done()
			d.sem <- struct{}{}
			defer func() { <-d.sem }()
			d.attempt(lg)
		}(lg)
	}
	return len(claimed), err
}

// Drain waits for in-flight deliveries to finish. A delivery is never
// cancelled mid-request; payment webhooks are not safe to interrupt silently.
func (d *Dispatcher) Drain() {
	d.wg.Wait()
}

// attempt performs one delivery and finalizes its row. On a retryable
// failure the outcome and the next scheduled row land in one transaction,
// which keeps retry_count monotonic per event.
func (d *Dispatcher) attempt(lg *models.WebhookLog) {
	app, err := d.apps.GetByID(lg.AppID)
	if err != nil {
		// The store hiccuped, not the tenant. Retryable.
		d.complete(lg, "app lookup failed: "+err.Error())
		return
	}
	if app == nil {
		d.finalize(lg, models.DeliveryExhausted, fmt.Sprintf("app %s no longer exists", lg.AppID))
		return
	}
	if app.WebhookSecret == "" {
		// Will not self-heal without operator intervention.
		d.finalize(lg, models.DeliveryExhausted, "webhook secret missing")
		return
	}

	signature := Sign(app.WebhookSecret, lg.Payload)

	req, err := http.NewRequest(http.MethodPost, app.WebhookURL, bytes.NewReader(lg.Payload))
	if err != nil {
		d.finalize(lg, models.DeliveryExhausted, "invalid webhook url: "+err.Error())
		return
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range lg.Headers {
		req.Header.Set(key, value)
	}
	req.Header.Set(SignatureHeader, "sha256="+signature)
	req.Header.Set(EventHeader, lg.EventType)
	req.Header.Set(DeliveryHeader, lg.EventID)

	start := time.Now()
	resp, err := d.client.Do(req)
	latency := time.Since(start).Milliseconds()

	now := d.now().Unix()
	lg.ProcessedAt = &now
	lg.LatencyMS = &latency

	var failure string
	if err != nil {
		failure = (&pkgerrors.DeliveryError{Reason: "request failed", Err: err}).Error()
	} else {
		code := resp.StatusCode
		lg.StatusCode = &code
		body := readLimited(resp.Body, d.cfg.ResponseBodyLimit)
		lg.ResponseBody = &body
		resp.Body.Close()

		if code < 200 || code >= 300 {
			failure = fmt.Sprintf("HTTP %d", code)
		}
	}

	d.complete(lg, failure)
}

// complete records the outcome of one tried attempt. An empty failure means
// delivered; otherwise the attempt retries until the cap.
func (d *Dispatcher) complete(lg *models.WebhookLog, failure string) {
	if lg.ProcessedAt == nil {
		now := d.now().Unix()
		lg.ProcessedAt = &now
	}

	if failure == "" {
		lg.Status = models.DeliveryDelivered
		if err := d.logs.UpdateOutcome(lg); err != nil {
			log.Error().Err(err).Str("log_id", lg.ID).Msg("failed to record delivery")
		}
		log.Info().
			Str("app_id", lg.AppID).
			Str("event_id", lg.EventID).
			Int("attempt", lg.RetryCount).
			Msg("webhook delivered")
		return
	}

	if lg.RetryCount+1 >= d.cfg.MaxAttempts {
		d.finalize(lg, models.DeliveryExhausted, failure)
		log.Error().
			Str("app_id", lg.AppID).
			Str("event_id", lg.EventID).
			Int("attempts", lg.RetryCount+1).
			Str("error", failure).
			Msg("webhook delivery exhausted")
		return
	}

	lg.Status = models.DeliveryRetrying
	lg.ErrorMessage = &failure

	delay := backoff(d.cfg.BackoffBase, d.cfg.BackoffMax, d.cfg.JitterFraction, lg.RetryCount)
	nextAt := *lg.ProcessedAt + int64(delay.Seconds())
	next := &models.WebhookLog{
		AppID:         lg.AppID,
		TransactionID: lg.TransactionID,
		EventID:       lg.EventID,
		EventType:     lg.EventType,
		Direction:     models.DirectionOutbound,
		Status:        models.DeliveryScheduled,
		Payload:       lg.Payload,
		Headers:       lg.Headers,
		RetryCount:    lg.RetryCount + 1,
		NextRetryAt:   &nextAt,
	}
	if err := d.logs.RecordRetry(lg, next); err != nil {
		// The attempt row stays in_flight; the lease reclaim retries it.
		log.Error().Err(err).Str("event_id", lg.EventID).Msg("failed to record retry, attempt left for reclaim")
		return
	}

	log.Warn().
		Str("app_id", lg.AppID).
		Str("event_id", lg.EventID).
		Int("attempt", lg.RetryCount).
		Str("error", failure).
		Int64("next_retry_at", nextAt).
		Msg("webhook delivery failed, retry scheduled")
}

func (d *Dispatcher) finalize(lg *models.WebhookLog, status, errMsg string) {
	if lg.ProcessedAt == nil {
		now := d.now().Unix()
		lg.ProcessedAt = &now
	}
	lg.Status = status
	if errMsg != "" {
		lg.ErrorMessage = &errMsg
	}
	if err := d.logs.UpdateOutcome(lg); err != nil {
		log.Error().Err(err).Str("log_id", lg.ID).Msg("failed to record delivery outcome")
	}
}

func readLimited(r io.Reader, limit int) string {
	buf, err := io.ReadAll(io.LimitReader(r, int64(limit)))
	if err != nil {
		return ""
	}
	return string(buf)
}
