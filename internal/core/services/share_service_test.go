package services

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"selfiebooth/pkg/i18n"
)

func TestShareService_Links(t *testing.T) {
	svc := NewShareService(i18n.Default())
	links := svc.Links(language.German, "https://mueller.example.com/", "Fahrschule Mueller")

	assert.Equal(t, "Schaut euch mein tolles Selfie mit Fahrschule Mueller an! 📸✨", links.Text)

	fb, err := url.Parse(links.Facebook)
	require.NoError(t, err)
	assert.Equal(t, "www.facebook.com", fb.Host)
	assert.Equal(t, "https://mueller.example.com/", fb.Query().Get("u"))
	assert.Equal(t, links.Text, fb.Query().Get("quote"))

	tw, err := url.Parse(links.Twitter)
	require.NoError(t, err)
	assert.Equal(t, "/intent/tweet", tw.Path)
	assert.Equal(t, links.Text, tw.Query().Get("text"))
	assert.Equal(t, "https://mueller.example.com/", tw.Query().Get("url"))

	wa, err := url.Parse(links.WhatsApp)
	require.NoError(t, err)
	assert.Equal(t, "wa.me", wa.Host)
	assert.Equal(t, links.Text+" https://mueller.example.com/", wa.Query().Get("text"))

	assert.Contains(t, links.InstagramMessage, "Instagram")
}

func TestShareService_English(t *testing.T) {
	links := NewShareService(i18n.Default()).Links(language.English, "https://x.example.com/", "Driving School X")
	assert.Equal(t, "Check out my awesome selfie with Driving School X! 📸✨", links.Text)
}
