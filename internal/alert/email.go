// email.go implements the email channel through the shoutrrr SMTP router.
package alert

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/url"
	"strings"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/soundsentry/screamdet-go/internal/conf"
	"github.com/soundsentry/screamdet-go/internal/errors"
)

// EmailChannel delivers alerts as HTML email via SMTP.
type EmailChannel struct {
	settings conf.EmailSettings
	timeout  time.Duration
	sender   *router.ServiceRouter
}

// NewEmailChannel creates the email channel from configuration. The SMTP
// sender is built lazily in ValidateConfig.
func NewEmailChannel(settings conf.EmailSettings, timeout time.Duration) *EmailChannel {
	return &EmailChannel{
		settings: settings,
		timeout:  timeout,
	}
}

func (c *EmailChannel) GetName() string { return ChannelEmail }

func (c *EmailChannel) IsEnabled() bool { return c.settings.Enabled }

// smtpURL builds the shoutrrr service URL from the SMTP settings.
func (c *EmailChannel) smtpURL() string {
	return fmt.Sprintf("smtp://%s:%s@%s:%d/?from=%s&to=%s&usehtml=yes",
		url.QueryEscape(c.settings.Username),
		url.QueryEscape(c.settings.Password),
		c.settings.Host,
		c.settings.Port,
		url.QueryEscape(c.settings.From),
		url.QueryEscape(strings.Join(c.settings.Recipients, ",")),
	)
}

// ValidateConfig checks the settings and builds the SMTP sender.
func (c *EmailChannel) ValidateConfig() error {
	if !c.settings.Enabled {
		return nil
	}
	if c.settings.Host == "" || c.settings.Username == "" || c.settings.Password == "" {
		return errors.Newf("email transport not configured").
			Component("alert").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if len(c.settings.Recipients) == 0 {
		return errors.Newf("no email recipients configured").
			Component("alert").
			Category(errors.CategoryConfiguration).
			Build()
	}

	sender, err := shoutrrr.CreateSender(c.smtpURL())
	if err != nil {
		return errors.New(err).
			Component("alert").
			Category(errors.CategoryConfiguration).
			Context("operation", "create_smtp_sender").
			Build()
	}
	if c.timeout > 0 {
		sender.Timeout = c.timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))
	c.sender = sender
	return nil
}

// Send delivers the alert email. SMTP level failures are treated as
// transient, the dispatcher decides on retries.
func (c *EmailChannel) Send(ctx context.Context, a *Alert) error {
	if c.sender == nil {
		return errors.Newf("email sender not initialized").
			Component("alert").
			Category(errors.CategoryState).
			Build()
	}
	_ = ctx // the router enforces its own timeout

	params := stypes.Params{}
	params.SetTitle(EmailSubject(a))

	errs := c.sender.Send(EmailBody(a), &params)
	for _, err := range errs {
		if err != nil {
			return errors.New(err).
				Component("alert").
				Category(errors.CategoryNotifyTransient).
				Context("operation", "smtp_send").
				Build()
		}
	}
	return nil
}
