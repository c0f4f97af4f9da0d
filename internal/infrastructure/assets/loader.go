// Package assets fetches the overlay images (frames and logos) a tenant
// configured, for the export compositor.
package assets

import (
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"selfiebooth/internal/core/domain"
	"selfiebooth/pkg/cache"
	"selfiebooth/pkg/imaging"
	"selfiebooth/pkg/retry"
	"selfiebooth/pkg/validation"
)

type Config struct {
	FetchTimeout time.Duration
	MaxBytes     int64
	CacheTTL     time.Duration
	// BaseURL resolves site relative paths such as /frames/classic.png.
	BaseURL string
	Retry   retry.Config
}

// Loader downloads and decodes overlay images. Decoded images are cached by
// URL; failures are not.
type Loader struct {
	cfg    Config
	client *http.Client
	images *cache.Cache[image.Image]
	logger *zap.SugaredLogger
}

func NewLoader(cfg Config, client *http.Client, logger *zap.SugaredLogger) *Loader {
	if client == nil {
		client = &http.Client{}
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = retry.Config{MaxAttempts: 2, InitialDelay: 100 * time.Millisecond, Multiplier: 2}
	}
	return &Loader{
		cfg:    cfg,
		client: client,
		images: cache.New[image.Image](cfg.CacheTTL),
		logger: logger,
	}
}

// Close stops the cache janitor.
func (l *Loader) Close() {
	l.images.Stop()
}

// Load returns the image at rawURL. Data URLs are decoded in place.
func (l *Loader) Load(ctx context.Context, rawURL string) (image.Image, error) {
	rawURL = strings.TrimSpace(rawURL)
	if strings.HasPrefix(rawURL, "data:") {
		if int64(len(rawURL)) > l.cfg.MaxBytes*4/3+64 {
			return nil, fmt.Errorf("%w: inline image too large", domain.ErrAssetUnavailable)
		}
		img, err := imaging.DecodeDataURL(rawURL)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrAssetUnavailable, err)
		}
		return img, nil
	}

	if err := validation.ValidateAssetURL(rawURL); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrAssetUnavailable, err)
	}
	target, err := l.resolve(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrAssetUnavailable, err)
	}

	img, err := l.images.GetOrSet(ctx, target, func(ctx context.Context) (image.Image, error) {
		return retry.DoWithResult(ctx, l.cfg.Retry, func(ctx context.Context) (image.Image, error) {
			return l.fetch(ctx, target)
		})
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrAssetUnavailable, err)
	}
	return img, nil
}

func (l *Loader) resolve(rawURL string) (string, error) {
	if !strings.HasPrefix(rawURL, "/") {
		return rawURL, nil
	}
	if l.cfg.BaseURL == "" {
		return "", fmt.Errorf("relative asset %s without base URL", rawURL)
	}
	base, err := url.Parse(l.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	ref, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

func (l *Loader) fetch(ctx context.Context, target string) (image.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	req.Header.Set("Accept", "image/png,image/jpeg,image/*")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%s returned %d", target, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, retry.Permanent(fmt.Errorf("%s returned %d", target, resp.StatusCode))
	}
	if resp.ContentLength > l.cfg.MaxBytes {
		return nil, retry.Permanent(fmt.Errorf("%s is %d bytes, limit %d", target, resp.ContentLength, l.cfg.MaxBytes))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, l.cfg.MaxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > l.cfg.MaxBytes {
		return nil, retry.Permanent(fmt.Errorf("%s exceeds %d bytes", target, l.cfg.MaxBytes))
	}

	img, err := imaging.Decode(data)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	l.logger.Debugw("Overlay asset fetched", "url", target, "bytes", len(data))
	return img, nil
}
