package conf

import (
	"fmt"

	"github.com/soundsentry/screamdet-go/internal/errors"
)

// knownChannels lists the channels the dispatcher can drive.
var knownChannels = map[string]bool{
	"sms":   true,
	"email": true,
}

// ValidateSettings checks the loaded settings for values the pipeline cannot
// operate with. It returns an error describing the first problem found.
func ValidateSettings(settings *Settings) error {
	if settings.Detector.Threshold <= 0 || settings.Detector.Threshold >= 1 {
		return errors.Newf("detector.threshold must be in the open interval (0,1), got %g", settings.Detector.Threshold).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if settings.Detector.SampleRate <= 0 {
		return errors.Newf("detector.samplerate must be positive, got %d", settings.Detector.SampleRate).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if settings.Detector.Cooldown < 0 {
		return errors.Newf("detector.cooldown must not be negative, got %s", settings.Detector.Cooldown).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	for _, ch := range settings.Alert.Channels {
		if !knownChannels[ch] {
			return errors.Newf("alert.channels contains unknown channel %q", ch).
				Component("conf").
				Category(errors.CategoryConfiguration).
				Context("known_channels", fmt.Sprintf("%v", []string{"sms", "email"})).
				Build()
		}
	}

	if settings.Alert.MaxRetries < 0 {
		return errors.Newf("alert.maxretries must not be negative, got %d", settings.Alert.MaxRetries).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if settings.Alert.BackoffBase <= 0 && settings.Alert.MaxRetries > 0 {
		return errors.Newf("alert.backoffbase must be positive when retries are enabled").
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if settings.Alert.Escalation.Enabled && settings.Alert.Escalation.MinScreams < 1 {
		return errors.Newf("alert.escalation.minscreams must be at least 1, got %d", settings.Alert.Escalation.MinScreams).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	return nil
}
