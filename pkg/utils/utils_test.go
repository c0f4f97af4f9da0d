package utils

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSequence_SameMillisecondNeverCollides(t *testing.T) {
	fixed := time.UnixMilli(1_700_000_000_000)
	s := &Sequence{now: func() time.Time { return fixed }}

	a := s.Next(0)
	b := s.Next(0)
	c := s.Next(0)

	assert.Equal(t, fixed.UnixMilli(), a)
	assert.Equal(t, a+1, b)
	assert.Equal(t, b+1, c)
}

func TestSequence_RespectsFloor(t *testing.T) {
	s := &Sequence{now: func() time.Time { return time.UnixMilli(10) }}
	assert.Equal(t, int64(101), s.Next(100))
	assert.Equal(t, int64(102), s.Next(5))
}

func TestSequence_Concurrent(t *testing.T) {
	s := NewSequence()
	const n = 200

	var mu sync.Mutex
	seen := make(map[int64]bool, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := s.Next(0)
			mu.Lock()
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, n)
}

func TestCeilDays(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, CeilDays(now, now))
	assert.Equal(t, 0, CeilDays(now, now.Add(-time.Hour)))
	assert.Equal(t, 1, CeilDays(now, now.Add(time.Hour)))
	assert.Equal(t, 7, CeilDays(now, now.Add(7*24*time.Hour)))
	assert.Equal(t, 8, CeilDays(now, now.Add(7*24*time.Hour+time.Minute)))
}
