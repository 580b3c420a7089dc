package webhooks

import (
	"testing"
)

func TestSign(t *testing.T) {
	secret := "secret"
	payload := []byte("payload")

	// Calculated using: echo -n "payload" | openssl dgst -sha256 -hmac "secret"
	expected := "b82fcb791acec57859b989b430a826488ce2e479fdf92326bd0a2e8375a42ba4"

	got := Sign(secret, payload)

	if got != expected {
		t.Errorf("Sign() = %v, want %v", got, expected)
	}
}

func TestSignStableAcrossCalls(t *testing.T) {
	payload := []byte(`{"event_id":"evt_1","amount":5000}`)

	first := Sign("whsec_abc", payload)
	second := Sign("whsec_abc", payload)

	if first != second {
		t.Errorf("Sign() not stable: %v != %v", first, second)
	}

	if Sign("whsec_other", payload) == first {
		t.Error("Sign() should differ across secrets")
	}
}
