package workers

import (
	"time"

	"github.com/rs/zerolog/log"

	"payhub/internal/engine/sessions"
	"payhub/internal/engine/webhooks"
)

// Runner drives the two background loops: the webhook delivery poller and
// the session expiry sweeper. Both loops are tick-driven and exit when stop
// closes.
type Runner struct {
	Dispatcher    *webhooks.Dispatcher
	Reaper        *sessions.Reaper
	PollInterval  time.Duration
	SweepInterval time.Duration
}

// RunWebhookPoller claims due scheduled deliveries on every tick and hands
// them to the dispatcher's worker pool.
func (r *Runner) RunWebhookPoller(stop <-chan struct{}) {
	interval := r.PollInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			claimed, err := r.Dispatcher.RunScheduledRetries(time.Now())
			if err != nil {
				log.Error().Err(err).Msg("webhook poll failed")
			}
			if claimed > 0 {
				log.Debug().Int("claimed", claimed).Msg("webhook deliveries dispatched")
			}
		}
	}
}

// RunSessionSweeper expires overdue pending sessions on every tick.
func (r *Runner) RunSessionSweeper(stop <-chan struct{}) {
	interval := r.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			expired, err := r.Reaper.Sweep(time.Now())
			if err != nil {
				log.Error().Err(err).Msg("session sweep failed")
			}
			if expired > 0 {
				log.Info().Int("expired", expired).Msg("sessions expired")
			}
		}
	}
}
