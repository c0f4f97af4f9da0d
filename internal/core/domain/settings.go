package domain

import (
	"fmt"
)

// FrameID is a creation timestamp in milliseconds; the seeded frames use 0..2.
type FrameID int64

// Frame is a decorative overlay with a transparent centre. An empty URL is
// the "no frame" entry.
type Frame struct {
	ID        FrameID `json:"id"`
	Name      string  `json:"name"`
	URL       string  `json:"url"`
	IsDefault bool    `json:"isDefault"`
	IsActive  bool    `json:"isActive"`
}

type LogoSize string

const (
	LogoSmall  LogoSize = "small"
	LogoMedium LogoSize = "medium"
	LogoLarge  LogoSize = "large"
)

type LogoPosition string

const (
	LogoTopCenter    LogoPosition = "top-center"
	LogoTopLeft      LogoPosition = "top-left"
	LogoTopRight     LogoPosition = "top-right"
	LogoBottomCenter LogoPosition = "bottom-center"
)

type LogoSettings struct {
	URL      string       `json:"url"`
	Position LogoPosition `json:"position"`
	Size     LogoSize     `json:"size"`
}

type TextPosition string

const (
	TextTop    TextPosition = "top"
	TextBottom TextPosition = "bottom"
)

type FontSize string

const (
	FontSmall  FontSize = "small"
	FontMedium FontSize = "medium"
	FontLarge  FontSize = "large"
)

type ColorScheme string

const (
	SchemePrimary    ColorScheme = "primary"
	SchemeBlackWhite ColorScheme = "blackwhite"
)

type TextOverlaySettings struct {
	Enabled        bool         `json:"enabled"`
	Text           string       `json:"text"`
	UseLocation    bool         `json:"useLocation"`
	LocationPrefix string       `json:"locationPrefix"`
	Position       TextPosition `json:"position"`
	FontSize       FontSize     `json:"fontSize"`
	ColorScheme    ColorScheme  `json:"colorScheme"`
}

// Settings is the versioned overlay configuration of a tenant. Values are
// replaced, never mutated in place: every change produces a new Settings
// with a higher Version.
type Settings struct {
	Version        int64               `json:"version"`
	PrimaryColor   string              `json:"primaryColor"`
	SecondaryColor string              `json:"secondaryColor"`
	Logo           LogoSettings        `json:"logo"`
	TextOverlay    TextOverlaySettings `json:"textOverlay"`
	Frames         []Frame             `json:"frames"`
}

// Clone returns a copy that shares no slice with s.
func (s Settings) Clone() Settings {
	out := s
	out.Frames = append([]Frame(nil), s.Frames...)
	return out
}

// LogoPatch replaces only the non-nil fields.
type LogoPatch struct {
	URL      *string       `json:"url,omitempty"`
	Position *LogoPosition `json:"position,omitempty"`
	Size     *LogoSize     `json:"size,omitempty"`
}

// TextOverlayPatch replaces only the non-nil fields.
type TextOverlayPatch struct {
	Enabled        *bool         `json:"enabled,omitempty"`
	Text           *string       `json:"text,omitempty"`
	UseLocation    *bool         `json:"useLocation,omitempty"`
	LocationPrefix *string       `json:"locationPrefix,omitempty"`
	Position       *TextPosition `json:"position,omitempty"`
	FontSize       *FontSize     `json:"fontSize,omitempty"`
	ColorScheme    *ColorScheme  `json:"colorScheme,omitempty"`
}

// SettingsPatch is a partial update. Frames, when present, replaces the
// whole list. ExpectedVersion, when present, must match the current version.
type SettingsPatch struct {
	ExpectedVersion *int64            `json:"expectedVersion,omitempty"`
	PrimaryColor    *string           `json:"primaryColor,omitempty"`
	SecondaryColor  *string           `json:"secondaryColor,omitempty"`
	Logo            *LogoPatch        `json:"logo,omitempty"`
	TextOverlay     *TextOverlayPatch `json:"textOverlay,omitempty"`
	Frames          *[]Frame          `json:"frames,omitempty"`
}

// ApplyPatch returns s with p merged in. It never modifies s.
func ApplyPatch(s Settings, p SettingsPatch) (Settings, error) {
	if p.ExpectedVersion != nil && *p.ExpectedVersion != s.Version {
		return s, fmt.Errorf("%w: expected %d, current %d", ErrVersionConflict, *p.ExpectedVersion, s.Version)
	}

	out := s.Clone()
	if p.PrimaryColor != nil {
		out.PrimaryColor = *p.PrimaryColor
	}
	if p.SecondaryColor != nil {
		out.SecondaryColor = *p.SecondaryColor
	}

	if lp := p.Logo; lp != nil {
		if lp.URL != nil {
			out.Logo.URL = *lp.URL
		}
		if lp.Position != nil {
			if !validLogoPosition(*lp.Position) {
				return s, fmt.Errorf("%w: logo position %q", ErrInvalidSettings, *lp.Position)
			}
			out.Logo.Position = *lp.Position
		}
		if lp.Size != nil {
			if !validLogoSize(*lp.Size) {
				return s, fmt.Errorf("%w: logo size %q", ErrInvalidSettings, *lp.Size)
			}
			out.Logo.Size = *lp.Size
		}
	}

	if tp := p.TextOverlay; tp != nil {
		if tp.Enabled != nil {
			out.TextOverlay.Enabled = *tp.Enabled
		}
		if tp.Text != nil {
			out.TextOverlay.Text = *tp.Text
		}
		if tp.UseLocation != nil {
			out.TextOverlay.UseLocation = *tp.UseLocation
		}
		if tp.LocationPrefix != nil {
			out.TextOverlay.LocationPrefix = *tp.LocationPrefix
		}
		if tp.Position != nil {
			if *tp.Position != TextTop && *tp.Position != TextBottom {
				return s, fmt.Errorf("%w: text position %q", ErrInvalidSettings, *tp.Position)
			}
			out.TextOverlay.Position = *tp.Position
		}
		if tp.FontSize != nil {
			if _, ok := fontSizePx[*tp.FontSize]; !ok {
				return s, fmt.Errorf("%w: font size %q", ErrInvalidSettings, *tp.FontSize)
			}
			out.TextOverlay.FontSize = *tp.FontSize
		}
		if tp.ColorScheme != nil {
			if *tp.ColorScheme != SchemePrimary && *tp.ColorScheme != SchemeBlackWhite {
				return s, fmt.Errorf("%w: color scheme %q", ErrInvalidSettings, *tp.ColorScheme)
			}
			out.TextOverlay.ColorScheme = *tp.ColorScheme
		}
	}

	if p.Frames != nil {
		frames := append([]Frame(nil), (*p.Frames)...)
		seen := make(map[FrameID]bool, len(frames))
		for _, f := range frames {
			if seen[f.ID] {
				return s, fmt.Errorf("%w: duplicate frame id %d", ErrInvalidSettings, f.ID)
			}
			seen[f.ID] = true
		}
		out.Frames = frames
	}

	out.Version = s.Version + 1
	return out, nil
}

func validLogoPosition(p LogoPosition) bool {
	switch p {
	case LogoTopCenter, LogoTopLeft, LogoTopRight, LogoBottomCenter:
		return true
	}
	return false
}

func validLogoSize(s LogoSize) bool {
	_, ok := logoHeightPx[s]
	return ok
}

// MaxFrameID returns the highest frame id, or -1 for an empty list.
func (s Settings) MaxFrameID() FrameID {
	max := FrameID(-1)
	for _, f := range s.Frames {
		if f.ID > max {
			max = f.ID
		}
	}
	return max
}

// FrameByID finds a frame.
func (s Settings) FrameByID(id FrameID) (Frame, bool) {
	for _, f := range s.Frames {
		if f.ID == id {
			return f, true
		}
	}
	return Frame{}, false
}

// WithFrame appends an active, non-default frame.
func (s Settings) WithFrame(id FrameID, name, url string) (Settings, error) {
	if name == "" || url == "" {
		return s, ErrInvalidFrame
	}
	if _, exists := s.FrameByID(id); exists {
		return s, fmt.Errorf("%w: duplicate frame id %d", ErrInvalidSettings, id)
	}
	out := s.Clone()
	out.Frames = append(out.Frames, Frame{ID: id, Name: name, URL: url, IsActive: true})
	out.Version++
	return out, nil
}

// WithoutFrame drops the frame with id.
func (s Settings) WithoutFrame(id FrameID) (Settings, error) {
	out := s.Clone()
	out.Frames = out.Frames[:0]
	found := false
	for _, f := range s.Frames {
		if f.ID == id {
			found = true
			continue
		}
		out.Frames = append(out.Frames, f)
	}
	if !found {
		return s, fmt.Errorf("%w: %d", ErrFrameNotFound, id)
	}
	out.Version++
	return out, nil
}

// WithDefaultFrame marks exactly the frame with id as default.
func (s Settings) WithDefaultFrame(id FrameID) (Settings, error) {
	if _, ok := s.FrameByID(id); !ok {
		return s, fmt.Errorf("%w: %d", ErrFrameNotFound, id)
	}
	out := s.Clone()
	for i := range out.Frames {
		out.Frames[i].IsDefault = out.Frames[i].ID == id
	}
	out.Version++
	return out, nil
}

// SelectFrame picks the frame the booth starts with: the active default,
// else the first active frame, else the first frame. ok is false for an
// empty list.
func SelectFrame(frames []Frame) (Frame, bool) {
	for _, f := range frames {
		if f.IsDefault && f.IsActive {
			return f, true
		}
	}
	for _, f := range frames {
		if f.IsActive {
			return f, true
		}
	}
	if len(frames) > 0 {
		return frames[0], true
	}
	return Frame{}, false
}
