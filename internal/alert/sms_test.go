package alert

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundsentry/screamdet-go/internal/conf"
	"github.com/soundsentry/screamdet-go/internal/errors"
)

func testSMSSettings() conf.SMSSettings {
	return conf.SMSSettings{
		Enabled:    true,
		AccountSID: "AC00000000000000000000000000000000",
		AuthToken:  "token",
		From:       "+15550100",
		Recipients: []string{"+15550101"},
	}
}

func newTestSMSChannel(t *testing.T, settings conf.SMSSettings) *SMSChannel {
	t.Helper()
	ch := NewSMSChannel(settings, 5*time.Second)
	httpmock.ActivateNonDefault(ch.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)
	return ch
}

const messagesURL = "https://api.twilio.com/2010-04-01/Accounts/AC00000000000000000000000000000000/Messages.json"

func TestSMSSendSuccess(t *testing.T) {
	ch := newTestSMSChannel(t, testSMSSettings())

	var gotBody string
	httpmock.RegisterResponder(http.MethodPost, messagesURL,
		func(req *http.Request) (*http.Response, error) {
			require.NoError(t, req.ParseForm())
			gotBody = req.PostForm.Get("Body")
			assert.Equal(t, "+15550101", req.PostForm.Get("To"))
			assert.Equal(t, "+15550100", req.PostForm.Get("From"))
			user, _, ok := req.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "AC00000000000000000000000000000000", user)
			return httpmock.NewJsonResponse(201, map[string]any{"sid": "SM123"})
		})

	err := ch.Send(context.Background(), &Alert{
		EventID:     "evt-1",
		Source:      "live",
		Probability: 0.93,
		Timestamp:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Contains(t, gotBody, "93%")
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestSMSSendRateLimitIsTransient(t *testing.T) {
	ch := newTestSMSChannel(t, testSMSSettings())
	httpmock.RegisterResponder(http.MethodPost, messagesURL,
		httpmock.NewJsonResponderOrPanic(429, map[string]any{"code": 20429, "message": "Too Many Requests"}))

	err := ch.Send(context.Background(), &Alert{EventID: "evt-1", Probability: 0.9, Timestamp: time.Now()})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryNotifyTransient))
}

func TestSMSSendBadRequestIsPermanent(t *testing.T) {
	ch := newTestSMSChannel(t, testSMSSettings())
	httpmock.RegisterResponder(http.MethodPost, messagesURL,
		httpmock.NewJsonResponderOrPanic(400, map[string]any{"code": 21211, "message": "Invalid 'To' Phone Number"}))

	err := ch.Send(context.Background(), &Alert{EventID: "evt-1", Probability: 0.9, Timestamp: time.Now()})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryNotifyPermanent))
	assert.Contains(t, err.Error(), "Invalid 'To' Phone Number")
}

func TestSMSSendConnectionErrorIsTransient(t *testing.T) {
	ch := newTestSMSChannel(t, testSMSSettings())
	httpmock.RegisterResponder(http.MethodPost, messagesURL,
		httpmock.NewErrorResponder(assert.AnError))

	err := ch.Send(context.Background(), &Alert{EventID: "evt-1", Probability: 0.9, Timestamp: time.Now()})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryNotifyTransient))
}

func TestSMSSendSucceedsWhenOneRecipientReached(t *testing.T) {
	settings := testSMSSettings()
	settings.Recipients = []string{"+15550101", "+15550102"}
	ch := newTestSMSChannel(t, settings)

	calls := 0
	httpmock.RegisterResponder(http.MethodPost, messagesURL,
		func(req *http.Request) (*http.Response, error) {
			calls++
			if calls == 1 {
				return httpmock.NewJsonResponse(400, map[string]any{"code": 21211, "message": "bad number"})
			}
			return httpmock.NewJsonResponse(201, map[string]any{"sid": "SM456"})
		})

	err := ch.Send(context.Background(), &Alert{EventID: "evt-1", Probability: 0.9, Timestamp: time.Now()})
	assert.NoError(t, err, "partial delivery counts as channel success")
	assert.Equal(t, 2, calls)
}

func TestSMSValidateConfig(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		ch := NewSMSChannel(testSMSSettings(), time.Second)
		assert.NoError(t, ch.ValidateConfig())
	})

	t.Run("missing credentials", func(t *testing.T) {
		settings := testSMSSettings()
		settings.AuthToken = ""
		ch := NewSMSChannel(settings, time.Second)
		assert.Error(t, ch.ValidateConfig())
	})

	t.Run("no recipients", func(t *testing.T) {
		settings := testSMSSettings()
		settings.Recipients = nil
		ch := NewSMSChannel(settings, time.Second)
		assert.Error(t, ch.ValidateConfig())
	})

	t.Run("disabled skips validation", func(t *testing.T) {
		ch := NewSMSChannel(conf.SMSSettings{}, time.Second)
		assert.NoError(t, ch.ValidateConfig())
	})
}
