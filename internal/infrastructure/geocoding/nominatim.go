// Package geocoding resolves coordinates to place names with a Nominatim
// compatible reverse geocoding endpoint.
package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"selfiebooth/internal/core/domain"
	"selfiebooth/pkg/circuitbreaker"
	"selfiebooth/pkg/tracing"
)

type Config struct {
	Endpoint          string
	UserAgent         string
	Language          string
	Timeout           time.Duration
	RequestsPerSecond float64
	MaxFailures       int
	ResetTimeout      time.Duration
}

// Nominatim calls the reverse endpoint politely: one limiter shared by every
// caller and a breaker that stops calling an upstream that keeps failing.
type Nominatim struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.SugaredLogger
}

func NewNominatim(cfg Config, client *http.Client, logger *zap.SugaredLogger) *Nominatim {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	burst := int(cfg.RequestsPerSecond)
	if burst < 1 {
		burst = 1
	}

	breaker := circuitbreaker.New(circuitbreaker.Config{
		Name:             "nominatim",
		FailureThreshold: cfg.MaxFailures,
		SuccessThreshold: 1,
		Timeout:          cfg.ResetTimeout,
	})
	breaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Warnw("Geocoder circuit changed", "from", from.String(), "to", to.String())
	})

	return &Nominatim{
		cfg:     cfg,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
		breaker: breaker,
		logger:  logger,
	}
}

type reverseResponse struct {
	DisplayName string `json:"display_name"`
	Address     struct {
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
		Suburb  string `json:"suburb"`
	} `json:"address"`
	Error string `json:"error"`
}

// placeName prefers the most specific settlement the response names.
func (r reverseResponse) placeName() string {
	for _, name := range []string{r.Address.City, r.Address.Town, r.Address.Village, r.Address.Suburb} {
		if name != "" {
			return name
		}
	}
	return ""
}

// ReverseGeocode returns the city, town, village or suburb at lat/lon.
func (n *Nominatim) ReverseGeocode(ctx context.Context, lat, lon float64) (string, error) {
	ctx, span := tracing.TraceOutbound(ctx, "nominatim", "reverse")
	defer span.End()

	if err := n.limiter.Wait(ctx); err != nil {
		return "", err
	}

	name, err := circuitbreaker.Run(ctx, n.breaker, func(ctx context.Context) (string, error) {
		return n.reverse(ctx, lat, lon)
	})
	if err != nil {
		tracing.RecordError(ctx, err)
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %w", domain.ErrGeocodingFailed, err)
	}
	return name, nil
}

func (n *Nominatim) reverse(ctx context.Context, lat, lon float64) (string, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("zoom", "10")
	q.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.cfg.Endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", n.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")
	if n.cfg.Language != "" {
		req.Header.Set("Accept-Language", n.cfg.Language)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("nominatim returned %d", resp.StatusCode)
	}

	var body reverseResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if body.Error != "" {
		return "", fmt.Errorf("nominatim: %s", body.Error)
	}

	name := body.placeName()
	if name == "" {
		n.logger.Debugw("Reverse geocoding found no settlement", "display_name", body.DisplayName)
		return "", fmt.Errorf("no settlement at %.4f, %.4f", lat, lon)
	}
	return name, nil
}

// State reports the breaker state.
func (n *Nominatim) State() circuitbreaker.State {
	return n.breaker.GetState()
}

// Stats reports the breaker counters for the health endpoint.
func (n *Nominatim) Stats() circuitbreaker.Stats {
	return n.breaker.GetStats()
}
