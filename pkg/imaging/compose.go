package imaging

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// ReferenceHeight is the preview height the overlay pixel sizes are
// expressed against; they scale linearly with the real photo height.
const ReferenceHeight = 480.0

// Placement of the logo on the photo.
type Placement string

const (
	TopCenter    Placement = "top-center"
	TopLeft      Placement = "top-left"
	TopRight     Placement = "top-right"
	BottomCenter Placement = "bottom-center"
)

// LogoLayer places an image at a fixed height, aspect ratio preserved.
type LogoLayer struct {
	Image    image.Image
	HeightPx float64 // at ReferenceHeight
	Position Placement
}

// TextLayer is a centred caption box at the top or bottom edge.
type TextLayer struct {
	Text       string
	Top        bool
	FontPx     float64 // at ReferenceHeight
	Background color.Color
	Foreground color.Color
}

// Layers are drawn in fixed order: frame, logo, text.
type Layers struct {
	Frame image.Image
	Logo  *LogoLayer
	Text  *TextLayer
}

const (
	edgeMarginPx = 16.0
	padXPx       = 16.0
	padYPx       = 8.0
	maxTextWidth = 0.9
)

// Compose renders the layers over a copy of photo.
func Compose(photo image.Image, layers Layers) (*image.RGBA, error) {
	pb := photo.Bounds()
	if pb.Dx() == 0 || pb.Dy() == 0 {
		return nil, ErrEmptyImage
	}

	dst := image.NewRGBA(image.Rect(0, 0, pb.Dx(), pb.Dy()))
	draw.Draw(dst, dst.Bounds(), photo, pb.Min, draw.Src)
	scale := float64(pb.Dy()) / ReferenceHeight

	if layers.Frame != nil {
		multiplyCover(dst, layers.Frame)
	}
	if layers.Logo != nil && layers.Logo.Image != nil {
		drawLogo(dst, *layers.Logo, scale)
	}
	if layers.Text != nil && layers.Text.Text != "" {
		if err := drawText(dst, *layers.Text, scale); err != nil {
			return nil, fmt.Errorf("draw caption: %w", err)
		}
	}
	return dst, nil
}

// coverRect returns the centred part of src that, scaled to dst, covers it.
func coverRect(src, dst image.Rectangle) image.Rectangle {
	sw, sh := float64(src.Dx()), float64(src.Dy())
	dw, dh := float64(dst.Dx()), float64(dst.Dy())

	s := dw / sw
	if dh/sh > s {
		s = dh / sh
	}
	cw, ch := int(dw/s+0.5), int(dh/s+0.5)
	if cw > src.Dx() {
		cw = src.Dx()
	}
	if ch > src.Dy() {
		ch = src.Dy()
	}
	x0 := src.Min.X + (src.Dx()-cw)/2
	y0 := src.Min.Y + (src.Dy()-ch)/2
	return image.Rect(x0, y0, x0+cw, y0+ch)
}

// multiplyCover blends frame over dst in multiply mode. Transparent frame
// pixels leave the photo untouched, dark ones darken it.
func multiplyCover(dst *image.RGBA, frame image.Image) {
	fb := frame.Bounds()
	if fb.Dx() == 0 || fb.Dy() == 0 {
		return
	}
	scaled := image.NewRGBA(dst.Bounds())
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), frame, coverRect(fb, dst.Bounds()), draw.Src, nil)

	for i := 0; i+3 < len(dst.Pix); i += 4 {
		a := uint32(scaled.Pix[i+3])
		if a == 0 {
			continue
		}
		for c := 0; c < 3; c++ {
			// premultiplied: out = b * (1 - a + s)
			b := uint32(dst.Pix[i+c])
			s := uint32(scaled.Pix[i+c])
			dst.Pix[i+c] = uint8(b * (255 - a + s) / 255)
		}
	}
}

func drawLogo(dst *image.RGBA, logo LogoLayer, scale float64) {
	lb := logo.Image.Bounds()
	if lb.Dx() == 0 || lb.Dy() == 0 {
		return
	}
	h := int(logo.HeightPx*scale + 0.5)
	if h <= 0 {
		return
	}
	w := lb.Dx() * h / lb.Dy()
	if w <= 0 {
		return
	}

	db := dst.Bounds()
	margin := int(edgeMarginPx*scale + 0.5)
	var x, y int
	switch logo.Position {
	case TopLeft:
		x, y = margin, margin
	case TopRight:
		x, y = db.Dx()-margin-w, margin
	case BottomCenter:
		x, y = (db.Dx()-w)/2, db.Dy()-margin-h
	default:
		x, y = (db.Dx()-w)/2, margin
	}

	draw.ApproxBiLinear.Scale(dst, image.Rect(x, y, x+w, y+h), logo.Image, lb, draw.Over, nil)
}

// captionFont is parsed once; faces are built per call because an
// opentype face keeps glyph buffers and is not safe for concurrent use.
var captionFont = sync.OnceValues(func() (*opentype.Font, error) {
	return opentype.Parse(goregular.TTF)
})

func captionFace(px float64) (font.Face, error) {
	f, err := captionFont()
	if err != nil {
		return nil, err
	}
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    px,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

func drawText(dst *image.RGBA, t TextLayer, scale float64) error {
	db := dst.Bounds()
	px := t.FontPx * scale
	padX := padXPx * scale
	padY := padYPx * scale
	limit := float64(db.Dx())*maxTextWidth - 2*padX
	if px < 1 {
		return nil
	}

	face, err := captionFace(px)
	if err != nil {
		return err
	}
	tw := font.MeasureString(face, t.Text).Ceil()
	if tw == 0 {
		face.Close()
		return nil
	}
	if limit > 0 && float64(tw) > limit {
		// shrink the font until the caption fits the box
		face.Close()
		px *= limit / float64(tw)
		if px < 1 {
			return nil
		}
		if face, err = captionFace(px); err != nil {
			return err
		}
		tw = font.MeasureString(face, t.Text).Ceil()
	}
	defer face.Close()

	m := face.Metrics()
	th := (m.Ascent + m.Descent).Ceil()
	boxW := tw + int(2*padX+0.5)
	boxH := th + int(2*padY+0.5)
	margin := int(edgeMarginPx*scale + 0.5)

	x := (db.Dx() - boxW) / 2
	y := db.Dy() - margin - boxH
	if t.Top {
		y = margin
	}
	box := image.Rect(x, y, x+boxW, y+boxH)
	draw.Draw(dst, box, image.NewUniform(t.Background), image.Point{}, draw.Over)

	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(t.Foreground),
		Face: face,
		Dot:  fixed.P(x+(boxW-tw)/2, y+(boxH-th)/2+m.Ascent.Ceil()),
	}
	d.DrawString(t.Text)
	return nil
}
