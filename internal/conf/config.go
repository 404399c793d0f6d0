// Package conf defines the application settings and functions to load and
// validate them.
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// MainSettings contains application wide settings.
type MainSettings struct {
	Name string    // node name, included in every detection event
	Log  LogConfig // main log file settings
}

// LogConfig contains settings for a log file output.
type LogConfig struct {
	Enabled bool   // true to enable this log
	Path    string // path to the log file
}

// DetectorSettings contains settings for the classification pipeline.
type DetectorSettings struct {
	ModelPath         string        // path to the classifier artifact
	ScalerPath        string        // path to the feature scaler artifact
	Threshold         float64       // decision boundary, open interval (0,1)
	Cooldown          time.Duration // debounce suppression window for live streams
	SampleRate        int           // sample rate the model was trained on
	LogAllEvaluations bool          // persist events for negative decisions too
}

// SMSSettings contains Twilio SMS channel settings.
type SMSSettings struct {
	Enabled    bool
	AccountSID string
	AuthToken  string
	From       string   // sending phone number
	Recipients []string // recipient phone numbers
}

// EmailSettings contains SMTP email channel settings.
type EmailSettings struct {
	Enabled    bool
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	Recipients []string
}

// EscalationSettings controls the emergency call escalation policy.
type EscalationSettings struct {
	Enabled         bool
	MinScreams      int           // positive detections required within the window
	Window          time.Duration // rolling window for counting detections
	EmergencyNumber string        // number reported in the escalation prompt
	SimulateCalls   bool          // log the call instead of placing it
}

// AlertSettings contains settings for alert dispatch.
type AlertSettings struct {
	Channels    []string      // enabled channels, subset of {sms, email}
	MaxRetries  int           // retry attempts per channel on transient failure
	BackoffBase time.Duration // initial retry delay
	BackoffMax  time.Duration // upper bound for the retry delay
	Timeout     time.Duration // per channel send timeout
	SMS         SMSSettings
	Email       EmailSettings
	Escalation  EscalationSettings
}

// OutputSettings contains settings for event persistence.
type OutputSettings struct {
	SQLite struct {
		Enabled bool   // true to enable sqlite output
		Path    string // path to the sqlite database
	}
}

// LocationSettings contains settings for the geolocation collaborator.
type LocationSettings struct {
	IPInfoToken string  // ipinfo.io token, empty disables IP lookup
	Latitude    float64 // fixed station latitude, 0 if unset
	Longitude   float64 // fixed station longitude, 0 if unset
}

// Settings is the root of the configuration tree.
type Settings struct {
	Debug bool // true to enable debug logging

	Main     MainSettings
	Detector DetectorSettings
	Alert    AlertSettings
	Output   OutputSettings
	Location LocationSettings
}

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into Settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	setDefaultConfig()

	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// No config file yet, defaults apply
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// GetDefaultConfigPaths returns the config search paths: working directory
// first, then the user config directory.
func GetDefaultConfigPaths() ([]string, error) {
	paths := []string{"."}
	configDir, err := os.UserConfigDir()
	if err == nil {
		paths = append(paths, filepath.Join(configDir, "screamdet-go"))
	}
	return paths, nil
}

// Setting returns the current settings instance, initializing it if necessary
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			if _, err := Load(); err != nil {
				panic(fmt.Sprintf("error loading settings: %v", err))
			}
		}
	})
	return GetSettings()
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveYAMLConfig writes the settings to the given path as YAML. The write is
// done through a temporary file so a crash never leaves a truncated config.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary config file: %w", err)
	}
	tempName := tempFile.Name()

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		os.Remove(tempName)
		return fmt.Errorf("error writing temporary config file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("error closing temporary config file: %w", err)
	}

	if err := os.Rename(tempName, configPath); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("error replacing config file: %w", err)
	}
	return nil
}

// ChannelEnabled reports whether the named channel is listed in
// alert.channels. Matching is case sensitive, names are lower case.
func (a *AlertSettings) ChannelEnabled(name string) bool {
	for _, ch := range a.Channels {
		if ch == name {
			return true
		}
	}
	return false
}
