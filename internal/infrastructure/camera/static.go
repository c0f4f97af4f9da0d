package camera

import (
	"context"
	"image"

	"selfiebooth/internal/core/domain"
	"selfiebooth/internal/core/ports"
)

// StaticCamera serves the same frame to every stream. It backs kiosk demos
// without a browser camera and the handler tests.
type StaticCamera struct {
	frame image.Image
}

func NewStaticCamera(frame image.Image) *StaticCamera {
	return &StaticCamera{frame: frame}
}

func (c *StaticCamera) CameraFor(string) ports.Camera { return c }

// Release is a no-op; the frame is shared by every session.
func (c *StaticCamera) Release(string) {}

func (c *StaticCamera) Open(ctx context.Context, constraints domain.Constraints) (ports.MediaStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := newFeedStream()
	s.push(c.frame)
	return s, nil
}
