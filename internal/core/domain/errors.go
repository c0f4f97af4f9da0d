package domain

import "errors"

var (
	ErrTenantNotFound     = errors.New("tenant not found")
	ErrTenantExists       = errors.New("tenant already exists")
	ErrUnknownPlan        = errors.New("unknown subscription plan")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAdminLoginDisabled = errors.New("admin login disabled")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionExpired     = errors.New("session expired")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("username or email already taken")
	ErrSelfStatusChange   = errors.New("cannot change own active status")
	ErrFrameNotFound      = errors.New("frame not found")
	ErrInvalidFrame       = errors.New("frame name and url are required")
	ErrInvalidSettings    = errors.New("invalid settings")
	ErrVersionConflict    = errors.New("settings version conflict")
	ErrInvalidTransition  = errors.New("invalid capture state transition")
	ErrCameraDenied       = errors.New("camera access denied")
	ErrVideoNotReady      = errors.New("video has no decoded frame yet")
	ErrCaptureNotFound    = errors.New("capture session not found")
	ErrNothingCaptured    = errors.New("no captured image")
	ErrGeocodingFailed    = errors.New("reverse geocoding failed")
	ErrAssetUnavailable   = errors.New("overlay asset unavailable")
)
