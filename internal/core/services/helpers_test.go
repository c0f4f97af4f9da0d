package services

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"

	"selfiebooth/internal/core/domain"
	"selfiebooth/internal/core/ports"
)

func ptr[T any](v T) *T { return &v }

type fakeTrack struct {
	id      string
	once    sync.Once
	done    chan struct{}
	stopped bool
	lingers bool // Stop does not close Done
	mu      sync.Mutex
}

func newFakeTrack(id string) *fakeTrack {
	return &fakeTrack{id: id, done: make(chan struct{})}
}

func (t *fakeTrack) ID() string { return t.id }

func (t *fakeTrack) Stop() {
	t.mu.Lock()
	t.stopped = true
	lingers := t.lingers
	t.mu.Unlock()
	if !lingers {
		t.once.Do(func() { close(t.done) })
	}
}

func (t *fakeTrack) Done() <-chan struct{} { return t.done }

func (t *fakeTrack) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

type fakeStream struct {
	id     string
	tracks []*fakeTrack
	frame  image.Image
	dims   domain.Dimensions
	ready  error
}

func (s *fakeStream) ID() string { return s.id }

func (s *fakeStream) Tracks() []ports.Track {
	out := make([]ports.Track, len(s.tracks))
	for i, t := range s.tracks {
		out[i] = t
	}
	return out
}

func (s *fakeStream) WaitReady(ctx context.Context) error { return s.ready }

func (s *fakeStream) Dimensions() domain.Dimensions { return s.dims }

func (s *fakeStream) Snapshot(ctx context.Context) (image.Image, error) {
	if s.frame == nil {
		return nil, errors.New("no frame")
	}
	return s.frame, nil
}

// fakeCamera hands out numbered streams. failures makes the next n Open
// calls fail with err.
type fakeCamera struct {
	mu       sync.Mutex
	opened   []*fakeStream
	failures int
	err      error
	frame    image.Image
	dims     domain.Dimensions
	lingers  bool
	released []string
}

func newFakeCamera() *fakeCamera {
	return &fakeCamera{frame: testFrame(4, 2), dims: domain.Dimensions{Width: 4, Height: 2}}
}

func (c *fakeCamera) Open(ctx context.Context, constraints domain.Constraints) (ports.MediaStream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failures > 0 {
		c.failures--
		return nil, c.err
	}
	n := len(c.opened) + 1
	track := newFakeTrack(fmt.Sprintf("video-%d", n))
	track.lingers = c.lingers
	s := &fakeStream{
		id:     fmt.Sprintf("stream-%d", n),
		tracks: []*fakeTrack{track},
		frame:  c.frame,
		dims:   c.dims,
	}
	c.opened = append(c.opened, s)
	return s, nil
}

func (c *fakeCamera) Opened() []*fakeStream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*fakeStream(nil), c.opened...)
}

func (c *fakeCamera) CameraFor(string) ports.Camera { return c }

func (c *fakeCamera) Release(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.released = append(c.released, key)
}

func (c *fakeCamera) Released() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.released...)
}

// testFrame is red on the left half, blue on the right.
func testFrame(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < w/2 {
				img.Set(x, y, color.RGBA{R: 255, A: 255})
			} else {
				img.Set(x, y, color.RGBA{B: 255, A: 255})
			}
		}
	}
	return img
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []ports.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, e ports.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Events() []ports.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ports.Event(nil), p.events...)
}

type stubGeocoder struct {
	mu    sync.Mutex
	calls int
	name  string
	err   error
}

func (g *stubGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return g.name, g.err
}

func (g *stubGeocoder) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type stubAssets map[string]image.Image

func (a stubAssets) Load(ctx context.Context, url string) (image.Image, error) {
	img, ok := a[url]
	if !ok {
		return nil, domain.ErrAssetUnavailable
	}
	return img, nil
}

type countingRecorder struct {
	mu       sync.Mutex
	captures map[string]int
	restarts map[string]int
	exports  map[string]int
	geocodes map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{
		captures: map[string]int{},
		restarts: map[string]int{},
		exports:  map[string]int{},
		geocodes: map[string]int{},
	}
}

func (r *countingRecorder) RecordCapture(tenantID, outcome string) {
	r.mu.Lock()
	r.captures[outcome]++
	r.mu.Unlock()
}

func (r *countingRecorder) RecordCameraRestart(tenantID, outcome string) {
	r.mu.Lock()
	r.restarts[outcome]++
	r.mu.Unlock()
}

func (r *countingRecorder) RecordExport(tenantID, disposition, outcome string) {
	r.mu.Lock()
	r.exports[disposition+"/"+outcome]++
	r.mu.Unlock()
}

func (r *countingRecorder) RecordExportDuration(time.Duration) {}

func (r *countingRecorder) RecordGeocode(outcome string) {
	r.mu.Lock()
	r.geocodes[outcome]++
	r.mu.Unlock()
}

func (r *countingRecorder) count(m map[string]int, key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return m[key]
}
