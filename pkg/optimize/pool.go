// Package optimize pools the scratch memory of the per-frame encode path.
package optimize

import (
	"bytes"
	"image/png"
	"sync"
)

// BufferPool recycles byte buffers. Buffers that grew past maxCap are
// dropped so one oversized frame does not pin memory forever.
type BufferPool struct {
	pool   sync.Pool
	maxCap int
}

func NewBufferPool(initialCap, maxCap int) *BufferPool {
	return &BufferPool{
		maxCap: maxCap,
		pool: sync.Pool{
			New: func() interface{} {
				return bytes.NewBuffer(make([]byte, 0, initialCap))
			},
		},
	}
}

// Get returns an empty buffer.
func (p *BufferPool) Get() *bytes.Buffer {
	return p.pool.Get().(*bytes.Buffer)
}

func (p *BufferPool) Put(b *bytes.Buffer) {
	if b == nil || (p.maxCap > 0 && b.Cap() > p.maxCap) {
		return
	}
	b.Reset()
	p.pool.Put(b)
}

// PNGEncoderPool satisfies png.EncoderBufferPool so consecutive encodes
// share their zlib writer and row buffers.
type PNGEncoderPool struct {
	pool sync.Pool
}

func (p *PNGEncoderPool) Get() *png.EncoderBuffer {
	b, _ := p.pool.Get().(*png.EncoderBuffer)
	return b
}

func (p *PNGEncoderPool) Put(b *png.EncoderBuffer) {
	p.pool.Put(b)
}
