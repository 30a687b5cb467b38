package webhook

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestVerifier(now time.Time) *Verifier {
	v := NewVerifier("test-secret", 5*time.Minute)
	v.now = func() time.Time { return now }
	return v
}

func TestVerify_AcceptsOwnSignature(t *testing.T) {
	now := time.Unix(1770000000, 0)
	v := newTestVerifier(now)
	body := []byte(`{"roomId":"r1"}`)
	ts := fmt.Sprintf("%d", now.Unix())

	assert.True(t, v.Verify(v.Sign(ts, body), ts, body))
}

func TestVerify_RejectsTamperedSignature(t *testing.T) {
	now := time.Unix(1770000000, 0)
	v := newTestVerifier(now)
	body := []byte(`{"roomId":"r1"}`)
	ts := fmt.Sprintf("%d", now.Unix())
	sig := v.Sign(ts, body)

	// Flip one nibble of the hex signature.
	flipped := []byte(sig)
	if flipped[0] == 'a' {
		flipped[0] = 'b'
	} else {
		flipped[0] = 'a'
	}
	assert.False(t, v.Verify(string(flipped), ts, body))
}

func TestVerify_RejectsTamperedBody(t *testing.T) {
	now := time.Unix(1770000000, 0)
	v := newTestVerifier(now)
	ts := fmt.Sprintf("%d", now.Unix())
	sig := v.Sign(ts, []byte(`{"roomId":"r1"}`))

	assert.False(t, v.Verify(sig, ts, []byte(`{"roomId":"r2"}`)))
}

func TestVerify_RejectsMissingInputs(t *testing.T) {
	now := time.Unix(1770000000, 0)
	v := newTestVerifier(now)
	body := []byte(`{}`)
	ts := fmt.Sprintf("%d", now.Unix())

	assert.False(t, v.Verify("", ts, body))
	assert.False(t, v.Verify(v.Sign(ts, body), "", body))
	assert.False(t, v.Verify(v.Sign("garbage", body), "garbage", body))
}

func TestVerify_RejectsTimestampOutsideTolerance(t *testing.T) {
	now := time.Unix(1770000000, 0)
	v := newTestVerifier(now)
	body := []byte(`{"roomId":"r1"}`)

	cases := map[string]time.Time{
		"one hour old":          now.Add(-time.Hour),
		"one hour in future":    now.Add(time.Hour),
		"just past tolerance":   now.Add(-5*time.Minute - time.Second),
		"future past tolerance": now.Add(5*time.Minute + time.Second),
	}
	for name, at := range cases {
		ts := fmt.Sprintf("%d", at.Unix())
		// Mathematically valid signature for that timestamp, still rejected.
		assert.False(t, v.Verify(v.Sign(ts, body), ts, body), name)
	}
}

func TestVerify_AcceptsSkewWithinTolerance(t *testing.T) {
	now := time.Unix(1770000000, 0)
	v := newTestVerifier(now)
	body := []byte(`{"roomId":"r1"}`)

	for _, at := range []time.Time{now.Add(-4 * time.Minute), now.Add(4 * time.Minute)} {
		ts := fmt.Sprintf("%d", at.Unix())
		assert.True(t, v.Verify(v.Sign(ts, body), ts, body))
	}
}
