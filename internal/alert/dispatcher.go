// dispatcher.go fans one alert out to all enabled channels concurrently,
// applying the per-channel retry policy and the at-most-once delivery
// ledger.
package alert

import (
	"context"
	"log/slog"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/soundsentry/screamdet-go/internal/conf"
	"github.com/soundsentry/screamdet-go/internal/errors"
	"github.com/soundsentry/screamdet-go/internal/logging"
)

// Ledger persists delivery records keyed by event id and channel so a
// pipeline-level retry never re-sends an already delivered channel.
type Ledger interface {
	WasDelivered(eventID, channel string) (bool, error)
	MarkDelivered(eventID, channel string) error
}

// ledgerCacheTTL bounds the in-memory delivery cache. The persistent ledger
// remains authoritative beyond it.
const ledgerCacheTTL = 24 * time.Hour

// Dispatcher owns the configured channels and the dispatch policy.
type Dispatcher struct {
	settings *conf.AlertSettings
	channels []Channel
	retry    RetryConfig
	timeout  time.Duration
	ledger   Ledger // optional, nil means in-memory only
	cache    *gocache.Cache
	logger   *slog.Logger
}

// NewDispatcher wires the dispatcher from settings. Channels that fail
// config validation are kept; their sends fail and are reported as outcomes
// rather than silently dropped.
func NewDispatcher(settings *conf.AlertSettings, channels []Channel, ledger Ledger) *Dispatcher {
	logger := logging.ForService("alert-dispatcher")
	if logger == nil {
		logger = slog.Default().With("service", "alert-dispatcher")
	}

	return &Dispatcher{
		settings: settings,
		channels: channels,
		retry: RetryConfig{
			Enabled:      settings.MaxRetries > 0,
			MaxRetries:   settings.MaxRetries,
			InitialDelay: settings.BackoffBase,
			MaxDelay:     settings.BackoffMax,
			Multiplier:   2.0,
		},
		timeout: settings.Timeout,
		ledger:  ledger,
		cache:   gocache.New(ledgerCacheTTL, 2*ledgerCacheTTL),
		logger:  logger,
	}
}

// Dispatch sends the alert on every enabled channel concurrently and blocks
// until all outcomes are known, each channel bounded by its own timeout and
// retry budget. One Outcome is returned per enabled channel; a channel
// failure never affects its siblings.
func (d *Dispatcher) Dispatch(ctx context.Context, a *Alert) []Outcome {
	var active []Channel
	for _, ch := range d.channels {
		if ch.IsEnabled() && d.settings.ChannelEnabled(ch.GetName()) {
			active = append(active, ch)
		}
	}
	if len(active) == 0 {
		return nil
	}

	outcomes := make([]Outcome, len(active))
	var wg sync.WaitGroup
	for i, ch := range active {
		wg.Add(1)
		go func(i int, ch Channel) {
			defer wg.Done()
			outcomes[i] = d.sendChannel(ctx, ch, a)
		}(i, ch)
	}
	wg.Wait()

	for i := range outcomes {
		d.logger.Info("dispatch outcome",
			"event_id", a.EventID,
			"channel", outcomes[i].Channel,
			"attempted", outcomes[i].Attempted,
			"succeeded", outcomes[i].Succeeded,
			"retries", outcomes[i].Retries,
			"error", outcomes[i].Error,
		)
	}
	return outcomes
}

// sendChannel drives one channel through the ledger check, the send and the
// retry loop, and always returns exactly one outcome.
func (d *Dispatcher) sendChannel(ctx context.Context, ch Channel, a *Alert) Outcome {
	name := ch.GetName()
	outcome := Outcome{Channel: name}

	if d.delivered(a.EventID, name) {
		// already delivered for this event, at-most-once holds
		outcome.Succeeded = true
		return outcome
	}

	outcome.Attempted = true
	start := time.Now()

	maxAttempts := 1
	if d.retry.Enabled {
		maxAttempts += d.retry.MaxRetries
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		sendCtx := ctx
		var cancel context.CancelFunc
		if d.timeout > 0 {
			sendCtx, cancel = context.WithTimeout(ctx, d.timeout)
		}
		err := ch.Send(sendCtx, a)
		if cancel != nil {
			cancel()
		}

		outcome.Retries = attempt - 1
		if err == nil {
			outcome.Succeeded = true
			outcome.Latency = time.Since(start)
			d.markDelivered(a.EventID, name)
			return outcome
		}

		lastErr = err
		if errors.HasCategory(err, errors.CategoryNotifyPermanent) {
			// bad recipient or payload, retrying cannot help
			break
		}
		if attempt == maxAttempts {
			break
		}

		select {
		case <-time.After(d.retry.Delay(attempt)):
		case <-ctx.Done():
			lastErr = errors.New(ctx.Err()).
				Component("alert").
				Category(errors.CategoryTimeout).
				Build()
			attempt = maxAttempts // give up, context is gone
		}
	}

	outcome.Succeeded = false
	outcome.Latency = time.Since(start)
	if lastErr != nil {
		outcome.Error = lastErr.Error()
	}
	return outcome
}

func (d *Dispatcher) ledgerKey(eventID, channel string) string {
	return eventID + ":" + channel
}

func (d *Dispatcher) delivered(eventID, channel string) bool {
	if _, found := d.cache.Get(d.ledgerKey(eventID, channel)); found {
		return true
	}
	if d.ledger != nil {
		ok, err := d.ledger.WasDelivered(eventID, channel)
		if err != nil {
			d.logger.Warn("ledger lookup failed", "event_id", eventID, "channel", channel, "error", err)
			return false
		}
		return ok
	}
	return false
}

func (d *Dispatcher) markDelivered(eventID, channel string) {
	d.cache.Set(d.ledgerKey(eventID, channel), true, gocache.DefaultExpiration)
	if d.ledger != nil {
		if err := d.ledger.MarkDelivered(eventID, channel); err != nil {
			d.logger.Warn("ledger write failed", "event_id", eventID, "channel", channel, "error", err)
		}
	}
}
