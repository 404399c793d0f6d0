// Package alert fans a positive detection out to the configured
// notification channels, with per-channel retry, timeout and at-most-once
// delivery per event.
package alert

import (
	"time"

	"github.com/soundsentry/screamdet-go/internal/geoloc"
)

// Channel names as they appear in configuration and outcomes.
const (
	ChannelSMS   = "sms"
	ChannelEmail = "email"
)

// Alert is the payload fanned out to every channel for one detection event.
type Alert struct {
	EventID     string          // identity of the originating detection event
	Source      string          // audio source, file name or "live"
	Probability float64         // classifier probability that triggered the alert
	Timestamp   time.Time       // detection time
	Location    *geoloc.Location // optional
}

// Outcome is the per-channel result of a dispatch. Exactly one outcome is
// produced per enabled channel, success or not.
type Outcome struct {
	Channel   string        `json:"channel"`
	Attempted bool          `json:"attempted"` // false when the ledger showed a prior success
	Succeeded bool          `json:"succeeded"`
	Error     string        `json:"error,omitempty"`
	Latency   time.Duration `json:"latency"`
	Retries   int           `json:"retries"` // retry attempts beyond the first send
}

// RetryConfig holds the retry behavior for one channel. Only transient
// failures are retried, permanent ones are recorded immediately.
type RetryConfig struct {
	Enabled      bool          // whether retry is enabled
	MaxRetries   int           // maximum number of retry attempts
	InitialDelay time.Duration // delay before the first retry
	MaxDelay     time.Duration // upper bound for the backoff delay
	Multiplier   float64       // backoff multiplier per retry
}

// Delay returns the backoff delay before retry attempt n (1-based),
// exponential with the configured multiplier, capped at MaxDelay.
func (rc *RetryConfig) Delay(attempt int) time.Duration {
	delay := rc.InitialDelay
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * rc.Multiplier)
		if rc.MaxDelay > 0 && delay > rc.MaxDelay {
			return rc.MaxDelay
		}
	}
	if rc.MaxDelay > 0 && delay > rc.MaxDelay {
		return rc.MaxDelay
	}
	return delay
}
