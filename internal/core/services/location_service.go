package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/language"

	"selfiebooth/internal/core/domain"
	"selfiebooth/internal/core/ports"
	"selfiebooth/pkg/cache"
	"selfiebooth/pkg/i18n"
)

// GeocodeRecorder counts reverse geocoding outcomes.
type GeocodeRecorder interface {
	RecordGeocode(outcome string)
}

// LocationService turns the browser's geolocation result into caption text.
type LocationService struct {
	geocoder ports.Geocoder
	places   *cache.Cache[string]
	catalog  *i18n.Catalog
	recorder GeocodeRecorder
	logger   *zap.SugaredLogger
}

// NewLocationService caches place names for cacheTTL. A nil geocoder
// always falls back to coordinates.
func NewLocationService(geocoder ports.Geocoder, cacheTTL time.Duration, catalog *i18n.Catalog, recorder GeocodeRecorder, logger *zap.SugaredLogger) *LocationService {
	return &LocationService{
		geocoder: geocoder,
		places:   cache.New[string](cacheTTL),
		catalog:  catalog,
		recorder: recorder,
		logger:   logger,
	}
}

// Close stops the cache janitor.
func (s *LocationService) Close() {
	s.places.Stop()
}

// placeKey rounds to three decimals, roughly 100 m.
func placeKey(lat, lon float64) string {
	round := func(v float64) float64 { return math.Round(v*1000) / 1000 }
	return fmt.Sprintf("%.3f,%.3f", round(lat), round(lon))
}

// CoordinatesText is the fallback caption when no place name is known.
func CoordinatesText(lat, lon float64) string {
	return fmt.Sprintf("%.4f, %.4f", lat, lon)
}

// LocationText returns the caption for req. Only a cancelled ctx yields an
// error; every other failure degrades to a message or to coordinates.
func (s *LocationService) LocationText(ctx context.Context, tag language.Tag, req domain.LocationRequest, prefix string) (string, error) {
	switch req.Status {
	case domain.LocationPending:
		return s.catalog.T(tag, i18n.LocationPending), nil
	case domain.LocationDenied:
		return s.catalog.T(tag, i18n.LocationDenied), nil
	case domain.LocationUnavailable, domain.LocationTimeout:
		return s.catalog.T(tag, i18n.LocationUnavailable), nil
	}

	if !validCoordinates(req.Latitude, req.Longitude) {
		return s.catalog.T(tag, i18n.LocationUnavailable), nil
	}

	place, err := s.place(ctx, req.Latitude, req.Longitude)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	if err != nil {
		s.logger.Warnw("Reverse geocoding failed, using coordinates", "error", err)
		place = CoordinatesText(req.Latitude, req.Longitude)
	}
	return withPrefix(prefix, place), nil
}

func (s *LocationService) place(ctx context.Context, lat, lon float64) (string, error) {
	if s.geocoder == nil {
		return "", domain.ErrGeocodingFailed
	}
	key := placeKey(lat, lon)
	if name, ok := s.places.Get(key); ok {
		s.record("hit")
		return name, nil
	}

	name, err := s.places.GetOrSet(ctx, key, func(ctx context.Context) (string, error) {
		name, err := s.geocoder.ReverseGeocode(ctx, lat, lon)
		if err == nil && strings.TrimSpace(name) == "" {
			err = fmt.Errorf("%w: empty place name", domain.ErrGeocodingFailed)
		}
		return name, err
	})
	if err != nil {
		s.record("failed")
		return "", err
	}
	s.record("ok")
	return name, nil
}

func (s *LocationService) record(outcome string) {
	if s.recorder != nil {
		s.recorder.RecordGeocode(outcome)
	}
}

// CaptionText is the text overlay content: the static text, or the
// location caption when the tenant enabled it.
func (s *LocationService) CaptionText(ctx context.Context, tag language.Tag, settings domain.Settings, req *domain.LocationRequest) (string, error) {
	overlay := settings.TextOverlay
	if !overlay.UseLocation {
		return overlay.Text, nil
	}
	if req == nil {
		return s.catalog.T(tag, i18n.LocationPending), nil
	}
	return s.LocationText(ctx, tag, *req, overlay.LocationPrefix)
}

func withPrefix(prefix, text string) string {
	if prefix == "" {
		return text
	}
	if strings.HasSuffix(prefix, " ") {
		return prefix + text
	}
	return prefix + " " + text
}

func validCoordinates(lat, lon float64) bool {
	return !math.IsNaN(lat) && !math.IsNaN(lon) && lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
