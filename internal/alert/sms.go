// sms.go implements the SMS channel on the Twilio Messages REST API.
package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/soundsentry/screamdet-go/internal/conf"
	"github.com/soundsentry/screamdet-go/internal/errors"
	"github.com/soundsentry/screamdet-go/internal/logging"
)

// twilioAPIBase is the default Twilio REST endpoint, overridable for tests.
const twilioAPIBase = "https://api.twilio.com/2010-04-01"

// SMSChannel delivers alerts as text messages through Twilio. One API call
// is made per configured recipient; the channel succeeds when at least one
// recipient was reached, matching the upstream service's semantics.
type SMSChannel struct {
	settings   conf.SMSSettings
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewSMSChannel creates the SMS channel from configuration.
func NewSMSChannel(settings conf.SMSSettings, timeout time.Duration) *SMSChannel {
	logger := logging.ForService("alert-sms")
	if logger == nil {
		logger = slog.Default().With("service", "alert-sms")
	}
	return &SMSChannel{
		settings:   settings,
		baseURL:    twilioAPIBase,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// SetBaseURL overrides the API endpoint, used by tests.
func (c *SMSChannel) SetBaseURL(base string) {
	c.baseURL = strings.TrimSuffix(base, "/")
}

func (c *SMSChannel) GetName() string { return ChannelSMS }

func (c *SMSChannel) IsEnabled() bool { return c.settings.Enabled }

// ValidateConfig rejects configurations the channel cannot send with.
func (c *SMSChannel) ValidateConfig() error {
	if !c.settings.Enabled {
		return nil
	}
	if c.settings.AccountSID == "" || c.settings.AuthToken == "" || c.settings.From == "" {
		return errors.Newf("twilio credentials not configured").
			Component("alert").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if len(c.settings.Recipients) == 0 {
		return errors.Newf("no SMS recipients configured").
			Component("alert").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}

// Send delivers the alert to every configured recipient. Recipient failures
// are independent; the send fails only when no recipient was reached, with
// the first error as cause.
func (c *SMSChannel) Send(ctx context.Context, a *Alert) error {
	body := SMSBody(a)

	var firstErr error
	successCount := 0
	for _, recipient := range c.settings.Recipients {
		if err := c.sendOne(ctx, recipient, body); err != nil {
			c.logger.Error("failed to send SMS", "recipient_count", len(c.settings.Recipients), "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		successCount++
	}

	if successCount == 0 && firstErr != nil {
		return firstErr
	}
	return nil
}

// twilioError is the error payload Twilio returns for rejected requests.
type twilioError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *SMSChannel) sendOne(ctx context.Context, recipient, body string) error {
	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", c.baseURL, c.settings.AccountSID)

	form := url.Values{}
	form.Set("To", recipient)
	form.Set("From", c.settings.From)
	form.Set("Body", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return errors.New(err).
			Component("alert").
			Category(errors.CategoryNotifyPermanent).
			Build()
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.settings.AccountSID, c.settings.AuthToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// network and timeout errors are retryable
		return errors.New(err).
			Component("alert").
			Category(errors.CategoryNotifyTransient).
			Context("operation", "twilio_send").
			Build()
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var twErr twilioError
	_ = json.Unmarshal(respBody, &twErr)

	category := errors.CategoryNotifyPermanent
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		category = errors.CategoryNotifyTransient
	}

	return errors.Newf("twilio send failed with status %d: %s", resp.StatusCode, twErr.Message).
		Component("alert").
		Category(category).
		Context("status_code", resp.StatusCode).
		Context("twilio_code", twErr.Code).
		Build()
}
