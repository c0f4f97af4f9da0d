package domain

// Overlay pixel sizes at the 480px reference preview height.
var (
	logoHeightPx = map[LogoSize]float64{
		LogoSmall:  32,
		LogoMedium: 48,
		LogoLarge:  64,
	}
	fontSizePx = map[FontSize]float64{
		FontSmall:  14,
		FontMedium: 16,
		FontLarge:  20,
	}
)

const (
	fallbackBackground = "#000000"
	fallbackForeground = "#FFFFFF"
)

// LogoHeightPx returns the logo height; unknown sizes render as medium.
func LogoHeightPx(size LogoSize) float64 {
	if px, ok := logoHeightPx[size]; ok {
		return px
	}
	return logoHeightPx[LogoMedium]
}

// TextStyle is the resolved look of the caption, shared by the live preview
// and the exported image.
type TextStyle struct {
	Position   TextPosition `json:"position"`
	FontSize   FontSize     `json:"fontSize"`
	FontPx     float64      `json:"fontPx"`
	FontRem    float64      `json:"fontRem"`
	Background string       `json:"backgroundColor"`
	Foreground string       `json:"color"`
}

// TextStyle resolves the text overlay look. It is recomputed on every call.
func (s Settings) TextStyle() TextStyle {
	t := s.TextOverlay

	style := TextStyle{Position: TextBottom, FontSize: FontMedium}
	if t.Position == TextTop {
		style.Position = TextTop
	}
	if _, ok := fontSizePx[t.FontSize]; ok {
		style.FontSize = t.FontSize
	}
	style.FontPx = fontSizePx[style.FontSize]
	style.FontRem = style.FontPx / 16

	if t.ColorScheme == SchemePrimary {
		style.Background = s.PrimaryColor
		style.Foreground = s.SecondaryColor
	} else {
		style.Background = fallbackBackground
		style.Foreground = fallbackForeground
	}
	return style
}
