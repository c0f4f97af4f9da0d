package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// GenerateRequestID generates a unique request ID
func GenerateRequestID() string {
	timestamp := time.Now().UnixNano()
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return fmt.Sprintf("req_%d_%s", timestamp, hex.EncodeToString(b))
}

// Sequence hands out millisecond timestamps that never repeat and never go
// backwards, even when called twice within the same millisecond.
type Sequence struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewSequence creates a Sequence backed by the wall clock.
func NewSequence() *Sequence {
	return &Sequence{now: time.Now}
}

// Next returns a value greater than both the previous result and floor.
func (s *Sequence) Next(floor int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.now().UnixMilli()
	if id <= s.last {
		id = s.last + 1
	}
	if id <= floor {
		id = floor + 1
	}
	s.last = id
	return id
}
