package settings

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wholesale-pos/wholesale-pos/internal/shared"
)

func TestEnabledRequiresToggleAndURL(t *testing.T) {
	require.False(t, AppConfig{}.Enabled())
	require.False(t, AppConfig{UseGoogleSheets: true, GoogleScriptURL: "   "}.Enabled())
	require.False(t, AppConfig{GoogleScriptURL: "https://script.google.com/macros/s/x/exec"}.Enabled())
	require.True(t, AppConfig{UseGoogleSheets: true, GoogleScriptURL: "https://script.google.com/macros/s/x/exec"}.Enabled())
}

func TestEndpoint(t *testing.T) {
	_, err := AppConfig{UseGoogleSheets: true}.Endpoint()
	require.ErrorIs(t, err, ErrSyncDisabled)

	url, err := AppConfig{GoogleScriptURL: " https://example.com/exec "}.Endpoint()
	require.NoError(t, err)
	require.Equal(t, "https://example.com/exec", url)
}

func TestValidateRejectsMalformedURL(t *testing.T) {
	require.NoError(t, AppConfig{}.Validate())
	require.NoError(t, AppConfig{GoogleScriptURL: "https://example.com/exec"}.Validate())

	err := AppConfig{GoogleScriptURL: "not a url"}.Validate()
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "GoogleScriptURL")

	err = AppConfig{GoogleScriptURL: "ftp://example.com/file"}.Validate()
	require.ErrorAs(t, err, &verr)
}
