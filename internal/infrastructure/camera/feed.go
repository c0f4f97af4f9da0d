// Package camera adapts the frames a booth browser pushes over its preview
// socket to the Camera port of the capture pipeline.
package camera

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/google/uuid"

	"selfiebooth/internal/core/domain"
	"selfiebooth/internal/core/ports"
)

// FeedCamera is the camera of one capture session. Every Open starts a new
// stream that becomes ready with the first frame pushed after it.
type FeedCamera struct {
	mu      sync.Mutex
	denied  bool
	current *feedStream
}

func NewFeedCamera() *FeedCamera {
	return &FeedCamera{}
}

// Open starts a stream. It fails with domain.ErrCameraDenied while the
// browser reports a refused permission.
func (c *FeedCamera) Open(ctx context.Context, constraints domain.Constraints) (ports.MediaStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.denied {
		return nil, domain.ErrCameraDenied
	}
	s := newFeedStream()
	c.current = s
	return s, nil
}

// Push delivers a decoded frame to the open stream. A frame also clears an
// earlier denial: the browser only sends frames once it has a camera.
func (c *FeedCamera) Push(frame image.Image) bool {
	c.mu.Lock()
	c.denied = false
	s := c.current
	c.mu.Unlock()

	if s == nil {
		return false
	}
	return s.push(frame)
}

// Deny records that the user refused camera access and fails a stream that
// is still waiting for its first frame.
func (c *FeedCamera) Deny() {
	c.mu.Lock()
	c.denied = true
	s := c.current
	c.mu.Unlock()

	if s != nil {
		s.deny()
	}
}

// Close ends the open stream, e.g. when the browser disconnected.
func (c *FeedCamera) Close() {
	c.mu.Lock()
	s := c.current
	c.current = nil
	c.mu.Unlock()

	if s != nil {
		s.track.Stop()
	}
}

type feedStream struct {
	id    string
	track *feedTrack

	mu        sync.RWMutex
	frame     image.Image
	dims      domain.Dimensions
	ready     chan struct{}
	readyOnce sync.Once
	denied    chan struct{}
	denyOnce  sync.Once
}

func newFeedStream() *feedStream {
	id := uuid.NewString()
	return &feedStream{
		id:     id,
		track:  newFeedTrack("video-" + id[:8]),
		ready:  make(chan struct{}),
		denied: make(chan struct{}),
	}
}

func (s *feedStream) ID() string { return s.id }

func (s *feedStream) Tracks() []ports.Track { return []ports.Track{s.track} }

func (s *feedStream) push(frame image.Image) bool {
	if frame == nil || s.track.stopped() {
		return false
	}
	b := frame.Bounds()

	s.mu.Lock()
	s.frame = frame
	if s.dims.Empty() {
		s.dims = domain.Dimensions{Width: b.Dx(), Height: b.Dy()}
	}
	s.mu.Unlock()

	s.readyOnce.Do(func() { close(s.ready) })
	return true
}

func (s *feedStream) deny() {
	s.denyOnce.Do(func() { close(s.denied) })
}

func (s *feedStream) WaitReady(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-s.denied:
		return domain.ErrCameraDenied
	case <-s.track.Done():
		return fmt.Errorf("stream %s ended before its first frame", s.id)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *feedStream) Dimensions() domain.Dimensions {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dims
}

func (s *feedStream) Snapshot(ctx context.Context) (image.Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.frame == nil {
		return nil, domain.ErrVideoNotReady
	}
	return s.frame, nil
}

type feedTrack struct {
	id   string
	done chan struct{}
	once sync.Once
}

func newFeedTrack(id string) *feedTrack {
	return &feedTrack{id: id, done: make(chan struct{})}
}

func (t *feedTrack) ID() string { return t.id }

func (t *feedTrack) Stop() { t.once.Do(func() { close(t.done) }) }

func (t *feedTrack) Done() <-chan struct{} { return t.done }

func (t *feedTrack) stopped() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}
