package alert

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundsentry/screamdet-go/internal/conf"
	"github.com/soundsentry/screamdet-go/internal/errors"
)

// scriptedChannel fails with the scripted errors in order, then succeeds.
type scriptedChannel struct {
	name    string
	enabled bool
	script  []error

	mu    sync.Mutex
	sends int
}

func (c *scriptedChannel) GetName() string       { return c.name }
func (c *scriptedChannel) IsEnabled() bool       { return c.enabled }
func (c *scriptedChannel) ValidateConfig() error { return nil }

func (c *scriptedChannel) Send(_ context.Context, _ *Alert) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sends++
	if c.sends <= len(c.script) {
		return c.script[c.sends-1]
	}
	return nil
}

func (c *scriptedChannel) sendCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sends
}

func transientErr() error {
	return errors.Newf("gateway timeout").
		Component("alert").
		Category(errors.CategoryNotifyTransient).
		Build()
}

func permanentErr() error {
	return errors.Newf("invalid recipient").
		Component("alert").
		Category(errors.CategoryNotifyPermanent).
		Build()
}

func testAlertSettings() *conf.AlertSettings {
	return &conf.AlertSettings{
		Channels:    []string{ChannelSMS, ChannelEmail},
		MaxRetries:  3,
		BackoffBase: time.Millisecond,
		BackoffMax:  5 * time.Millisecond,
		Timeout:     time.Second,
	}
}

func testAlert() *Alert {
	return &Alert{
		EventID:     "evt-1",
		Source:      "live",
		Probability: 0.93,
		Timestamp:   time.Now(),
	}
}

func outcomeFor(t *testing.T, outcomes []Outcome, channel string) *Outcome {
	t.Helper()
	for i := range outcomes {
		if outcomes[i].Channel == channel {
			return &outcomes[i]
		}
	}
	t.Fatalf("no outcome for channel %s", channel)
	return nil
}

func TestDispatchFansOutToAllEnabledChannels(t *testing.T) {
	sms := &scriptedChannel{name: ChannelSMS, enabled: true}
	email := &scriptedChannel{name: ChannelEmail, enabled: true}
	d := NewDispatcher(testAlertSettings(), []Channel{sms, email}, nil)

	outcomes := d.Dispatch(context.Background(), testAlert())
	require.Len(t, outcomes, 2)
	assert.True(t, outcomeFor(t, outcomes, ChannelSMS).Succeeded)
	assert.True(t, outcomeFor(t, outcomes, ChannelEmail).Succeeded)
	assert.Equal(t, 1, sms.sendCount())
	assert.Equal(t, 1, email.sendCount())
}

func TestDispatchSkipsDisabledChannels(t *testing.T) {
	settings := testAlertSettings()
	settings.Channels = []string{ChannelEmail} // sms not configured on

	sms := &scriptedChannel{name: ChannelSMS, enabled: true}
	email := &scriptedChannel{name: ChannelEmail, enabled: true}
	d := NewDispatcher(settings, []Channel{sms, email}, nil)

	outcomes := d.Dispatch(context.Background(), testAlert())
	require.Len(t, outcomes, 1)
	assert.Equal(t, ChannelEmail, outcomes[0].Channel)
	assert.Zero(t, sms.sendCount())
}

func TestDispatchRetriesTransientFailures(t *testing.T) {
	// sms needs two retries, email delivers on the first try
	sms := &scriptedChannel{name: ChannelSMS, enabled: true, script: []error{transientErr(), transientErr()}}
	email := &scriptedChannel{name: ChannelEmail, enabled: true}
	d := NewDispatcher(testAlertSettings(), []Channel{sms, email}, nil)

	outcomes := d.Dispatch(context.Background(), testAlert())
	require.Len(t, outcomes, 2)

	smsOutcome := outcomeFor(t, outcomes, ChannelSMS)
	assert.True(t, smsOutcome.Succeeded)
	assert.Equal(t, 2, smsOutcome.Retries)
	assert.Equal(t, 3, sms.sendCount())

	emailOutcome := outcomeFor(t, outcomes, ChannelEmail)
	assert.True(t, emailOutcome.Succeeded)
	assert.Zero(t, emailOutcome.Retries)
}

func TestDispatchDoesNotRetryPermanentFailures(t *testing.T) {
	sms := &scriptedChannel{name: ChannelSMS, enabled: true, script: []error{permanentErr()}}
	d := NewDispatcher(testAlertSettings(), []Channel{sms}, nil)

	outcomes := d.Dispatch(context.Background(), testAlert())
	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Succeeded)
	assert.Contains(t, outcomes[0].Error, "invalid recipient")
	assert.Equal(t, 1, sms.sendCount(), "permanent failures must not be retried")
}

func TestDispatchExhaustsRetryBudget(t *testing.T) {
	sms := &scriptedChannel{name: ChannelSMS, enabled: true,
		script: []error{transientErr(), transientErr(), transientErr(), transientErr()}}
	d := NewDispatcher(testAlertSettings(), []Channel{sms}, nil)

	outcomes := d.Dispatch(context.Background(), testAlert())
	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Succeeded)
	assert.Equal(t, 3, outcomes[0].Retries)
	assert.Equal(t, 4, sms.sendCount(), "first send plus max retries")
}

func TestDispatchIsAtMostOncePerEventAndChannel(t *testing.T) {
	sms := &scriptedChannel{name: ChannelSMS, enabled: true}
	d := NewDispatcher(testAlertSettings(), []Channel{sms}, nil)

	first := d.Dispatch(context.Background(), testAlert())
	require.Len(t, first, 1)
	assert.True(t, first[0].Attempted)
	assert.True(t, first[0].Succeeded)

	// a pipeline level replay of the same event must not send again
	second := d.Dispatch(context.Background(), testAlert())
	require.Len(t, second, 1)
	assert.False(t, second[0].Attempted)
	assert.True(t, second[0].Succeeded)
	assert.Equal(t, 1, sms.sendCount())
}

// memoryLedger records deliveries in a map, standing in for the database
// backed ledger.
type memoryLedger struct {
	mu        sync.Mutex
	delivered map[string]bool
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{delivered: make(map[string]bool)}
}

func (l *memoryLedger) WasDelivered(eventID, channel string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.delivered[eventID+":"+channel], nil
}

func (l *memoryLedger) MarkDelivered(eventID, channel string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.delivered[eventID+":"+channel] = true
	return nil
}

func TestDispatchConsultsPersistentLedger(t *testing.T) {
	ledger := newMemoryLedger()
	require.NoError(t, ledger.MarkDelivered("evt-1", ChannelSMS))

	sms := &scriptedChannel{name: ChannelSMS, enabled: true}
	d := NewDispatcher(testAlertSettings(), []Channel{sms}, ledger)

	outcomes := d.Dispatch(context.Background(), testAlert())
	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Attempted, "prior delivery in the ledger suppresses the send")
	assert.True(t, outcomes[0].Succeeded)
	assert.Zero(t, sms.sendCount())
}

func TestDispatchFailureIsolation(t *testing.T) {
	sms := &scriptedChannel{name: ChannelSMS, enabled: true,
		script: []error{permanentErr()}}
	email := &scriptedChannel{name: ChannelEmail, enabled: true}
	d := NewDispatcher(testAlertSettings(), []Channel{sms, email}, nil)

	outcomes := d.Dispatch(context.Background(), testAlert())
	require.Len(t, outcomes, 2)
	assert.False(t, outcomeFor(t, outcomes, ChannelSMS).Succeeded)
	assert.True(t, outcomeFor(t, outcomes, ChannelEmail).Succeeded,
		"one channel failing must not affect its siblings")
}

func TestRetryConfigDelay(t *testing.T) {
	rc := RetryConfig{
		Enabled:      true,
		MaxRetries:   5,
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}

	assert.Equal(t, time.Second, rc.Delay(1))
	assert.Equal(t, 2*time.Second, rc.Delay(2))
	assert.Equal(t, 4*time.Second, rc.Delay(3))
	assert.Equal(t, 8*time.Second, rc.Delay(4))
	assert.Equal(t, 10*time.Second, rc.Delay(5), "delay is capped at the maximum")
}
