package domain

type CaptureState string

const (
	StateStarting  CaptureState = "starting"
	StateReady     CaptureState = "ready"
	StateCapturing CaptureState = "capturing"
	StateCaptured  CaptureState = "captured"
	StateReleasing CaptureState = "releasing"
	StateDenied    CaptureState = "denied"
	StateStopped   CaptureState = "stopped"
)

type FacingMode string

const (
	FacingUser        FacingMode = "user"
	FacingEnvironment FacingMode = "environment"
)

// Constraints requested from the camera. Audio is never requested.
type Constraints struct {
	FacingMode  FacingMode `json:"facingMode"`
	IdealWidth  int        `json:"idealWidth"`
	IdealHeight int        `json:"idealHeight"`
	Audio       bool       `json:"audio"`
}

type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (d Dimensions) Empty() bool {
	return d.Width <= 0 || d.Height <= 0
}

type CaptureID string

// CaptureSnapshot is the externally visible state of a capture session.
type CaptureSnapshot struct {
	ID            CaptureID    `json:"id"`
	TenantID      TenantID     `json:"tenantId"`
	State         CaptureState `json:"state"`
	StreamID      string       `json:"streamId,omitempty"`
	Dimensions    Dimensions   `json:"dimensions"`
	CapturedImage string       `json:"capturedImage,omitempty"`
	FrameID       *FrameID     `json:"frameId,omitempty"`
	Restarts      int          `json:"restarts"`
}

type LocationStatus string

const (
	LocationPending     LocationStatus = "pending"
	LocationGranted     LocationStatus = "granted"
	LocationDenied      LocationStatus = "denied"
	LocationUnavailable LocationStatus = "unavailable"
	LocationTimeout     LocationStatus = "timeout"
)

// LocationRequest carries what the browser's geolocation call produced.
type LocationRequest struct {
	Status    LocationStatus `json:"status"`
	Latitude  float64        `json:"latitude"`
	Longitude float64        `json:"longitude"`
}
