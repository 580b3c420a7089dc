package auth

import (
	"crypto/rand"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"
)

const keyPrefixLen = 12

// GenerateAPIKey mints a bearer credential for an app. The raw key is shown
// to the tenant once; only the prefix and a bcrypt hash are stored, so lookup
// goes by prefix and verification by hash compare.
func GenerateAPIKey() (raw, prefix, hash string, err error) {
	buf := make([]byte, 24)
	if _, err = rand.Read(buf); err != nil {
		return "", "", "", err
	}

	raw = "pk_" + hex.EncodeToString(buf)
	prefix = raw[:keyPrefixLen]

	digest, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", "", "", err
	}
	return raw, prefix, string(digest), nil
}

// KeyPrefix extracts the stored lookup prefix from a presented key.
func KeyPrefix(raw string) string {
	if len(raw) < keyPrefixLen {
		return ""
	}
	return raw[:keyPrefixLen]
}

func VerifyAPIKey(hash, raw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw)) == nil
}

// GenerateWebhookSecret returns a fresh HMAC signing secret.
func GenerateWebhookSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "whsec_" + hex.EncodeToString(buf), nil
}
