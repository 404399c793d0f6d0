// Package geoloc resolves the optional location attached to detection
// events. Location is supplied by an external collaborator, absence is
// always valid.
package geoloc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/soundsentry/screamdet-go/internal/errors"
)

// Location is a resolved position with optional human readable address.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"` // meters
	Address   string  `json:"address"`
	Source    string  `json:"source"` // "fixed", "ipinfo", "browser"
}

// Coordinates returns "lat,lng" with enough precision for a maps link.
func (l *Location) Coordinates() string {
	return fmt.Sprintf("%.8f,%.8f", l.Latitude, l.Longitude)
}

// MapsURL returns a Google Maps link for the location.
func (l *Location) MapsURL() string {
	return fmt.Sprintf("https://www.google.com/maps?q=%g,%g", l.Latitude, l.Longitude)
}

// Resolver supplies a location per evaluation. Implementations return
// (nil, nil) when no location is available, that is not an error.
type Resolver interface {
	Resolve(ctx context.Context) (*Location, error)
}

// FixedResolver returns a statically configured station position.
type FixedResolver struct {
	Latitude  float64
	Longitude float64
}

// Resolve returns the fixed position, or nil when none is configured.
func (f *FixedResolver) Resolve(_ context.Context) (*Location, error) {
	if f.Latitude == 0 && f.Longitude == 0 {
		return nil, nil
	}
	return &Location{
		Latitude:  f.Latitude,
		Longitude: f.Longitude,
		Accuracy:  50,
		Source:    "fixed",
	}, nil
}

// IPInfoClient resolves a coarse position from the host's public IP via
// ipinfo.io. Accuracy is in the kilometer range, so it is only a fallback.
type IPInfoClient struct {
	Token      string
	HTTPClient *http.Client
	BaseURL    string // overridable for tests
}

// NewIPInfoClient creates a client with a bounded request timeout.
func NewIPInfoClient(token string) *IPInfoClient {
	return &IPInfoClient{
		Token:      token,
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
		BaseURL:    "https://ipinfo.io",
	}
}

type ipinfoResponse struct {
	City    string `json:"city"`
	Region  string `json:"region"`
	Country string `json:"country"`
	Loc     string `json:"loc"` // "lat,lng"
}

// Resolve looks up the host position. Lookup failures are reported as
// network errors, callers treat them as a missing location.
func (c *IPInfoClient) Resolve(ctx context.Context) (*Location, error) {
	if c.Token == "" {
		return nil, nil
	}

	url := fmt.Sprintf("%s/json?token=%s", c.BaseURL, c.Token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, errors.New(err).
			Component("geoloc").
			Category(errors.CategoryNetwork).
			Build()
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, errors.New(err).
			Component("geoloc").
			Category(errors.CategoryNetwork).
			Context("operation", "ipinfo_lookup").
			Build()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("ipinfo lookup returned status %d", resp.StatusCode).
			Component("geoloc").
			Category(errors.CategoryNetwork).
			Build()
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.New(err).
			Component("geoloc").
			Category(errors.CategoryNetwork).
			Build()
	}

	var info ipinfoResponse
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, errors.New(err).
			Component("geoloc").
			Category(errors.CategoryNetwork).
			Build()
	}

	parts := strings.SplitN(info.Loc, ",", 2)
	if len(parts) != 2 {
		return nil, nil
	}
	lat, errLat := strconv.ParseFloat(parts[0], 64)
	lng, errLng := strconv.ParseFloat(parts[1], 64)
	if errLat != nil || errLng != nil {
		return nil, nil
	}

	return &Location{
		Latitude:  lat,
		Longitude: lng,
		Accuracy:  1000, // IP based positions are coarse
		Address:   strings.TrimSuffix(fmt.Sprintf("%s, %s, %s", info.City, info.Region, info.Country), ", "),
		Source:    "ipinfo",
	}, nil
}
