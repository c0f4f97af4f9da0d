package i18n

import (
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestDefault_GermanIsSource(t *testing.T) {
	c := Default()
	assert.Equal(t, "Ungültige Anmeldedaten oder Konto deaktiviert", c.T(language.German, AuthInvalidCredentials))
	assert.Equal(t, "Schaut euch mein tolles Selfie mit Fahrschule Müller an! 📸✨", c.T(language.German, ShareText, "Fahrschule Müller"))
}

func TestMatch(t *testing.T) {
	c := Default()
	assert.Equal(t, language.English, c.Match("en-US,en;q=0.9"))
	assert.Equal(t, language.German, c.Match("de-DE"))
	assert.Equal(t, language.German, c.Match("fr-FR"))
	assert.Equal(t, language.German, c.Match(""))
}

func TestFromRequest(t *testing.T) {
	c := Default()

	r := httptest.NewRequest("GET", "/t/mueller?lang=en", nil)
	r.Header.Set("Accept-Language", "de")
	assert.Equal(t, language.English, c.FromRequest(r))

	r = httptest.NewRequest("GET", "/t/mueller", nil)
	r.Header.Set("Accept-Language", "en")
	assert.Equal(t, "Access denied", c.T(c.FromRequest(r), AccessDenied))
}

func TestEveryKeyTranslated(t *testing.T) {
	c := Default()
	keys := []string{
		ErrUnexpected, TenantNotFound, AccessDenied, AuthInvalidCredentials, CameraDenied,
		LocationPending, LocationDenied, LocationUnavailable, ShareInstagram, ExportIOSInstructions,
		PlanMonthly, PlanYearly, PlanYearlyNote, UsersDuplicate, FramesNameURLRequired,
	}
	for _, k := range keys {
		assert.NotEqual(t, k, c.T(language.German, k), "missing de message for %s", k)
		assert.NotEqual(t, k, c.T(language.English, k), "missing en message for %s", k)
	}
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(fstest.MapFS{})
	assert.Error(t, err)

	_, err = Load(fstest.MapFS{"locales/x.yaml": {Data: []byte("locale: \"??\"\nmessages: {}\n")}})
	assert.Error(t, err)

	c, err := Load(fstest.MapFS{"locales/de.yaml": {Data: []byte("locale: de\nmessages:\n  a: b\n")}})
	require.NoError(t, err)
	assert.Equal(t, "b", c.T(language.German, "a"))
}
