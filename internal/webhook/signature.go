// Package webhook authenticates, deduplicates, and applies inbound
// ad-server events.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Verifier checks webhook signatures against the shared secret.
//
// The ad server signs the unix-seconds timestamp joined to the raw body
// with a dot, HMAC-SHA256, hex encoded. Timestamps outside the tolerance
// window are rejected in both directions to bound replay.
type Verifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewVerifier creates a verifier. tolerance <= 0 falls back to 5 minutes.
func NewVerifier(secret string, tolerance time.Duration) *Verifier {
	if tolerance <= 0 {
		tolerance = 5 * time.Minute
	}
	return &Verifier{secret: []byte(secret), tolerance: tolerance, now: time.Now}
}

// Sign computes the expected signature for a timestamp and raw body.
func (v *Verifier) Sign(timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether the provided signature authenticates the request.
// It must run before any payload parsing or state mutation.
func (v *Verifier) Verify(signature, timestamp string, body []byte) bool {
	if signature == "" || timestamp == "" {
		return false
	}
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	skew := v.now().Sub(time.Unix(ts, 0))
	if skew > v.tolerance || skew < -v.tolerance {
		return false
	}
	expected := v.Sign(timestamp, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
