package signature

import (
	"time"
)

type signatureError string

const (
	ErrMismatch         = signatureError("signature mismatch")
	ErrInvalidTimestamp = signatureError("invalid timestamp")
	ErrStale            = signatureError("timestamp outside of freshness window")
	ErrReplayed         = signatureError("signature already used")
)

func (e signatureError) Error() string {
	return string(e)
}

// Codec verifies authentication attempts with the configured scheme. When a
// freshness window is set, it also rejects stale timestamps and replays of
// a previously accepted (device, timestamp) pair.
type Codec struct {
	scheme Scheme
	window time.Duration
	guard  *ReplayGuard
	now    func() time.Time
}

// NewCodec creates a Codec. A zero window disables the freshness and replay
// checks.
func NewCodec(scheme Scheme, window time.Duration) *Codec {
	c := &Codec{
		scheme: scheme,
		window: window,
		now:    time.Now,
	}
	if window > 0 {
		c.guard = NewReplayGuard(window)
	}
	return c
}

// Scheme returns the scheme used by the codec.
func (c *Codec) Scheme() Scheme {
	return c.scheme
}

// Sign returns the digest with the codec's scheme.
func (c *Codec) Sign(deviceID, authKey, timestamp string) string {
	return Sign(c.scheme, deviceID, authKey, timestamp)
}

// Verify checks the digest only.
func (c *Codec) Verify(deviceID, authKey, timestamp, signature string) bool {
	return Verify(c.scheme, deviceID, authKey, timestamp, signature)
}

// CheckFreshness rejects timestamps further than the window away from now.
func (c *Codec) CheckFreshness(timestamp string, now time.Time) error {
	if c.window <= 0 {
		return nil
	}

	ts, err := ParseTimestamp(timestamp)
	if err != nil {
		return ErrInvalidTimestamp
	}

	skew := now.Sub(ts)
	if skew < 0 {
		skew = -skew
	}
	if skew > c.window {
		return ErrStale
	}
	return nil
}

// Authenticate runs the digest, freshness and replay checks in that order.
func (c *Codec) Authenticate(deviceID, authKey, timestamp, signature string) error {
	if !c.Verify(deviceID, authKey, timestamp, signature) {
		return ErrMismatch
	}

	now := c.now()
	if err := c.CheckFreshness(timestamp, now); err != nil {
		return err
	}

	if c.guard != nil && !c.guard.Accept(deviceID, timestamp, now) {
		return ErrReplayed
	}
	return nil
}
