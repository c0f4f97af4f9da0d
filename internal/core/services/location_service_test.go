package services

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/text/language"

	"selfiebooth/internal/core/domain"
	"selfiebooth/pkg/i18n"
)

func newLocation(t *testing.T, g *stubGeocoder) (*LocationService, *countingRecorder) {
	t.Helper()
	rec := newCountingRecorder()
	var svc *LocationService
	if g == nil {
		svc = NewLocationService(nil, time.Minute, i18n.Default(), rec, zaptest.NewLogger(t).Sugar())
	} else {
		svc = NewLocationService(g, time.Minute, i18n.Default(), rec, zaptest.NewLogger(t).Sugar())
	}
	t.Cleanup(svc.Close)
	return svc, rec
}

func granted(lat, lon float64) domain.LocationRequest {
	return domain.LocationRequest{Status: domain.LocationGranted, Latitude: lat, Longitude: lon}
}

func TestLocationText_StatusMessages(t *testing.T) {
	svc, _ := newLocation(t, &stubGeocoder{name: "Berlin"})
	ctx := context.Background()

	tests := []struct {
		status domain.LocationStatus
		tag    language.Tag
		want   string
	}{
		{domain.LocationPending, language.German, "Standort wird ermittelt..."},
		{domain.LocationDenied, language.German, "Standortzugriff wurde verweigert"},
		{domain.LocationUnavailable, language.German, "Standort konnte nicht ermittelt werden"},
		{domain.LocationTimeout, language.German, "Standort konnte nicht ermittelt werden"},
		{domain.LocationDenied, language.English, "Location access was denied"},
	}
	for _, tc := range tests {
		t.Run(string(tc.status)+"/"+tc.tag.String(), func(t *testing.T) {
			got, err := svc.LocationText(ctx, tc.tag, domain.LocationRequest{Status: tc.status}, "📍")
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestLocationText_PlaceNameWithPrefix(t *testing.T) {
	g := &stubGeocoder{name: "Berlin"}
	svc, rec := newLocation(t, g)
	ctx := context.Background()

	got, err := svc.LocationText(ctx, language.German, granted(52.52, 13.405), "📍")
	require.NoError(t, err)
	assert.Equal(t, "📍 Berlin", got)

	got, err = svc.LocationText(ctx, language.German, granted(52.5201, 13.4051), "")
	require.NoError(t, err)
	assert.Equal(t, "Berlin", got)

	assert.Equal(t, 1, g.Calls(), "nearby coordinates share the cached name")
	assert.Equal(t, 1, rec.count(rec.geocodes, "ok"))
	assert.Equal(t, 1, rec.count(rec.geocodes, "hit"))
}

func TestLocationText_FallsBackToCoordinates(t *testing.T) {
	g := &stubGeocoder{err: errors.New("502 bad gateway")}
	svc, rec := newLocation(t, g)

	got, err := svc.LocationText(context.Background(), language.German, granted(48.137154, 11.576124), "Ort:")
	require.NoError(t, err)
	assert.Equal(t, "Ort: 48.1372, 11.5761", got)
	assert.Equal(t, 1, rec.count(rec.geocodes, "failed"))
}

func TestLocationText_EmptyPlaceNameFallsBack(t *testing.T) {
	svc, _ := newLocation(t, &stubGeocoder{name: "  "})

	got, err := svc.LocationText(context.Background(), language.German, granted(1, 2), "")
	require.NoError(t, err)
	assert.Equal(t, "1.0000, 2.0000", got)
}

func TestLocationText_NoGeocoder(t *testing.T) {
	svc, _ := newLocation(t, nil)

	got, err := svc.LocationText(context.Background(), language.German, granted(1, 2), "")
	require.NoError(t, err)
	assert.Equal(t, CoordinatesText(1, 2), got)
}

func TestLocationText_InvalidCoordinates(t *testing.T) {
	g := &stubGeocoder{name: "Nowhere"}
	svc, _ := newLocation(t, g)

	got, err := svc.LocationText(context.Background(), language.English, granted(math.NaN(), 2), "")
	require.NoError(t, err)
	assert.Equal(t, "Location could not be determined", got)

	got, err = svc.LocationText(context.Background(), language.English, granted(91, 2), "")
	require.NoError(t, err)
	assert.Equal(t, "Location could not be determined", got)
	assert.Zero(t, g.Calls())
}

func TestLocationText_CancelledContext(t *testing.T) {
	svc, _ := newLocation(t, &stubGeocoder{err: context.Canceled})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.LocationText(ctx, language.German, granted(1, 2), "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCaptionText(t *testing.T) {
	svc, _ := newLocation(t, &stubGeocoder{name: "Hamburg"})
	ctx := context.Background()
	settings := domain.Settings{TextOverlay: domain.TextOverlaySettings{Enabled: true, Text: "www.mueller.de", LocationPrefix: "📍"}}

	got, err := svc.CaptionText(ctx, language.German, settings, nil)
	require.NoError(t, err)
	assert.Equal(t, "www.mueller.de", got)

	settings.TextOverlay.UseLocation = true
	got, err = svc.CaptionText(ctx, language.German, settings, nil)
	require.NoError(t, err)
	assert.Equal(t, "Standort wird ermittelt...", got)

	req := granted(53.55, 9.99)
	got, err = svc.CaptionText(ctx, language.German, settings, &req)
	require.NoError(t, err)
	assert.Equal(t, "📍 Hamburg", got)
}
