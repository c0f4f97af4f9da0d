package camera

import (
	"sync"

	"selfiebooth/internal/core/ports"
)

// FeedHub owns one FeedCamera per capture session key.
type FeedHub struct {
	mu      sync.Mutex
	cameras map[string]*FeedCamera
}

func NewFeedHub() *FeedHub {
	return &FeedHub{cameras: make(map[string]*FeedCamera)}
}

// CameraFor returns the camera of key, creating it on first use.
func (h *FeedHub) CameraFor(key string) ports.Camera {
	return h.Feed(key)
}

// Feed is CameraFor with the concrete type, for the socket that pushes frames.
func (h *FeedHub) Feed(key string) *FeedCamera {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.cameras[key]
	if !ok {
		c = NewFeedCamera()
		h.cameras[key] = c
	}
	return c
}

// Release frees the camera of a closed capture session.
func (h *FeedHub) Release(key string) {
	h.Remove(key)
}

// Remove closes and forgets the camera of key.
func (h *FeedHub) Remove(key string) {
	h.mu.Lock()
	c, ok := h.cameras[key]
	delete(h.cameras, key)
	h.mu.Unlock()

	if ok {
		c.Close()
	}
}

func (h *FeedHub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.cameras)
}
