// Package settings holds the operator-editable application configuration.
package settings

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/wholesale-pos/wholesale-pos/internal/shared"
)

// ErrSyncDisabled is returned by remote operations when no endpoint is configured.
var ErrSyncDisabled = errors.New("settings: remote sync is not configured")

// AppConfig controls remote synchronisation.
type AppConfig struct {
	UseGoogleSheets bool   `json:"useGoogleSheets"`
	GoogleScriptURL string `json:"googleScriptUrl" validate:"omitempty,url,startswith=http"`
}

var validate = validator.New()

// Normalize trims user input.
func (c AppConfig) Normalize() AppConfig {
	c.GoogleScriptURL = strings.TrimSpace(c.GoogleScriptURL)
	return c
}

// Validate checks the endpoint URL and returns a field error map on failure.
func (c AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return shared.NewValidationError(err)
	}
	return nil
}

// Enabled reports whether pushes should be dispatched. An empty URL disables
// sync regardless of the toggle.
func (c AppConfig) Enabled() bool {
	return c.UseGoogleSheets && strings.TrimSpace(c.GoogleScriptURL) != ""
}

// Endpoint returns the configured URL, or ErrSyncDisabled when none is set.
func (c AppConfig) Endpoint() (string, error) {
	url := strings.TrimSpace(c.GoogleScriptURL)
	if url == "" {
		return "", ErrSyncDisabled
	}
	return url, nil
}
