package webhooks

import (
	"math/rand"
	"time"
)

// backoff computes the delay before attempt retryCount+1: base doubled per
// prior attempt, capped, with symmetric jitter so tenant retries spread out
// instead of herding.
func backoff(base, max time.Duration, jitterFraction float64, retryCount int) time.Duration {
	if base <= 0 {
		base = 30 * time.Second
	}
	if max <= 0 {
		max = time.Hour
	}

	d := base
	for i := 0; i < retryCount; i++ {
		d *= 2
		if d >= max {
			d = max
			break
		}
	}

	if jitterFraction > 0 {
		spread := float64(d) * jitterFraction
		d += time.Duration((rand.Float64()*2 - 1) * spread)
		if d < base {
			d = base
		}
		if d > max {
			d = max
		}
	}
	return d
}
