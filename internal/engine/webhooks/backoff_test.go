package webhooks

import (
	"testing"
	"time"
)

func TestBackoffDoublesAndCaps(t *testing.T) {
	base := 30 * time.Second
	max := time.Hour

	tests := []struct {
		retryCount int
		want       time.Duration
	}{
		{0, 30 * time.Second},
		{1, 60 * time.Second},
		{2, 120 * time.Second},
		{5, 960 * time.Second},
		{6, 1920 * time.Second},
		{7, time.Hour},
		{20, time.Hour},
	}

	for _, tt := range tests {
		got := backoff(base, max, 0, tt.retryCount)
		if got != tt.want {
			t.Errorf("backoff(retryCount=%d) = %v, want %v", tt.retryCount, got, tt.want)
		}
	}
}

func TestBackoffJitterBounds(t *testing.T) {
	base := 30 * time.Second
	max := time.Hour
	jitter := 0.2

	for retry := 0; retry < 8; retry++ {
		unjittered := backoff(base, max, 0, retry)
		upper := unjittered + time.Duration(float64(unjittered)*jitter)

		for i := 0; i < 50; i++ {
			got := backoff(base, max, jitter, retry)
			if got < base {
				t.Fatalf("backoff(retry=%d) = %v, below floor %v", retry, got, base)
			}
			if got > upper {
				t.Fatalf("backoff(retry=%d) = %v, above upper bound %v", retry, got, upper)
			}
			if got > max {
				t.Fatalf("backoff(retry=%d) = %v, above cap %v", retry, got, max)
			}
		}
	}
}

func TestBackoffJitterNeverExceedsCap(t *testing.T) {
	base := 30 * time.Second
	max := time.Hour

	// At the cap a positive jitter draw has the most room to overshoot.
	for i := 0; i < 200; i++ {
		if got := backoff(base, max, 0.5, 10); got > max {
			t.Fatalf("backoff at cap = %v, above %v", got, max)
		}
	}
}
