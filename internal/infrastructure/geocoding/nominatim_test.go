package geocoding

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"selfiebooth/internal/core/domain"
	"selfiebooth/pkg/circuitbreaker"
)

func testConfig(endpoint string) Config {
	return Config{
		Endpoint:          endpoint,
		UserAgent:         "selfiebooth-test",
		Language:          "de",
		Timeout:           time.Second,
		RequestsPerSecond: 100,
		MaxFailures:       2,
		ResetTimeout:      time.Minute,
	}
}

func TestNominatim_ReverseGeocode(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "selfiebooth-test", r.Header.Get("User-Agent"))
		assert.Equal(t, "de", r.Header.Get("Accept-Language"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "52.52", r.URL.Query().Get("lat"))
		assert.Equal(t, "13.405", r.URL.Query().Get("lon"))
		w.Write([]byte(`{"display_name":"Berlin, Deutschland","address":{"city":"Berlin","suburb":"Mitte"}}`))
	}))
	defer ts.Close()

	n := NewNominatim(testConfig(ts.URL), ts.Client(), zaptest.NewLogger(t).Sugar())
	name, err := n.ReverseGeocode(context.Background(), 52.52, 13.405)
	require.NoError(t, err)
	assert.Equal(t, "Berlin", name)
}

func TestReverseResponse_PlaceNamePrecedence(t *testing.T) {
	var r reverseResponse
	assert.Empty(t, r.placeName())
	r.Address.Suburb = "Altstadt"
	assert.Equal(t, "Altstadt", r.placeName())
	r.Address.Village = "Kleinhausen"
	assert.Equal(t, "Kleinhausen", r.placeName())
	r.Address.Town = "Mittelstadt"
	assert.Equal(t, "Mittelstadt", r.placeName())
	r.Address.City = "München"
	assert.Equal(t, "München", r.placeName())
}

func TestNominatim_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, ""},
		{"upstream error field", http.StatusOK, `{"error":"Unable to geocode"}`},
		{"no settlement", http.StatusOK, `{"display_name":"Atlantik","address":{}}`},
		{"garbage", http.StatusOK, `<html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			n := NewNominatim(testConfig(ts.URL), ts.Client(), zaptest.NewLogger(t).Sugar())
			_, err := n.ReverseGeocode(context.Background(), 1, 2)
			assert.ErrorIs(t, err, domain.ErrGeocodingFailed)
		})
	}
}

func TestNominatim_BreakerOpensAfterFailures(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	n := NewNominatim(testConfig(ts.URL), ts.Client(), zaptest.NewLogger(t).Sugar())
	for i := 0; i < 2; i++ {
		_, err := n.ReverseGeocode(context.Background(), 1, 2)
		require.Error(t, err)
	}
	assert.Equal(t, circuitbreaker.StateOpen, n.State())
	assert.Equal(t, "open", n.Stats().State.String())

	_, err := n.ReverseGeocode(context.Background(), 1, 2)
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.ErrorIs(t, err, domain.ErrGeocodingFailed)
	assert.Equal(t, int32(2), calls.Load())
}

func TestNominatim_CancelledContext(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer ts.Close()

	n := NewNominatim(testConfig(ts.URL), ts.Client(), zaptest.NewLogger(t).Sugar())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := n.ReverseGeocode(ctx, 1, 2)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, circuitbreaker.StateClosed, n.State())
}
