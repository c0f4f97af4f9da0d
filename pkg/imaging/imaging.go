// Package imaging holds the raster operations of the booth: mirroring the
// selfie, blending overlays and encoding the result.
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"selfiebooth/pkg/optimize"
)

// PNGDataURLPrefix starts every captured still.
const PNGDataURLPrefix = "data:image/png;base64,"

var ErrEmptyImage = errors.New("image has zero width or height")

var (
	pngEncoder = png.Encoder{BufferPool: &optimize.PNGEncoderPool{}}
	buffers    = optimize.NewBufferPool(64<<10, 8<<20)
)

// Decode reads a PNG or JPEG image.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// DecodeDataURL decodes a base64 "data:image/...;base64," URL or bare base64.
func DecodeDataURL(s string) (image.Image, error) {
	payload := s
	if strings.HasPrefix(s, "data:") {
		idx := strings.Index(s, ",")
		if idx < 0 || !strings.Contains(s[:idx], ";base64") {
			return nil, fmt.Errorf("unsupported data URL")
		}
		payload = s[idx+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return Decode(raw)
}

// EncodePNG encodes img losslessly.
func EncodePNG(img image.Image) ([]byte, error) {
	buf := buffers.Get()
	defer buffers.Put(buf)
	if err := pngEncoder.Encode(buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return bytes.Clone(buf.Bytes()), nil
}

// EncodePNGDataURL encodes img as a PNG data URL.
func EncodePNGDataURL(img image.Image) (string, error) {
	buf := buffers.Get()
	defer buffers.Put(buf)
	if err := pngEncoder.Encode(buf, img); err != nil {
		return "", fmt.Errorf("encode png: %w", err)
	}
	return PNGDataURLPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Mirror flips img horizontally so the still matches the mirrored live view.
func Mirror(img image.Image) (*image.RGBA, error) {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, ErrEmptyImage
	}

	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	w := b.Dx()
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < w; x++ {
			dst.Set(w-1-x, y, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst, nil
}

// ParseColor parses "#rrggbb" or "#rgb". Anything else yields fallback.
func ParseColor(s string, fallback color.Color) color.Color {
	c, err := colorful.Hex(strings.TrimSpace(s))
	if err != nil {
		return fallback
	}
	r, g, bl := c.Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: bl, A: 0xff}
}
