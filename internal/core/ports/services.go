package ports

import (
	"context"
	"image"

	"selfiebooth/internal/core/domain"
)

type PrincipalKind string

const (
	PrincipalUser        PrincipalKind = "user"
	PrincipalTenantAdmin PrincipalKind = "tenant_admin"
)

// AuthSession is what route guards consult. User sessions and tenant admin
// sessions both satisfy it without sharing a principal type.
type AuthSession interface {
	Authenticated() bool
	PrincipalID() string
	Kind() PrincipalKind
	HasPermission(permission string) bool
	HasRole(role domain.RoleName) bool
}

// Camera hands out media streams. Implementations return
// domain.ErrCameraDenied when the user refused access.
type Camera interface {
	Open(ctx context.Context, constraints domain.Constraints) (MediaStream, error)
}

type MediaStream interface {
	ID() string
	Tracks() []Track
	// WaitReady blocks until the first frame has been decoded.
	WaitReady(ctx context.Context) error
	Dimensions() domain.Dimensions
	// Snapshot returns the current frame as the user sees it, unmirrored.
	Snapshot(ctx context.Context) (image.Image, error)
}

type Track interface {
	ID() string
	Stop()
	// Done is closed once the track has actually ended.
	Done() <-chan struct{}
}

type Geocoder interface {
	// ReverseGeocode returns a place name for the coordinates.
	ReverseGeocode(ctx context.Context, lat, lon float64) (string, error)
}

type AssetLoader interface {
	Load(ctx context.Context, url string) (image.Image, error)
}

type EventType string

const (
	EventSettingsUpdated     EventType = "settings.updated"
	EventSubscriptionUpdated EventType = "subscription.updated"
)

type Event struct {
	Type     EventType        `json:"type"`
	TenantID domain.TenantID  `json:"tenant_id"`
	Settings *domain.Settings `json:"settings,omitempty"`
}

type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// EventSubscriber delivers events of every instance to local handlers.
type EventSubscriber interface {
	Subscribe(handler func(Event)) (unsubscribe func())
}
