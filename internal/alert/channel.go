package alert

import "context"

// Channel defines a notification delivery backend. Implementations must be
// safe for concurrent use.
type Channel interface {
	GetName() string
	ValidateConfig() error
	Send(ctx context.Context, a *Alert) error
	IsEnabled() bool
}
