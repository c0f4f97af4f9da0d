package services

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"regexp"
	"time"

	"go.uber.org/zap"

	"selfiebooth/internal/core/domain"
	"selfiebooth/internal/core/ports"
	"selfiebooth/pkg/imaging"
	"selfiebooth/pkg/tracing"
)

const (
	DispositionAttachment = "attachment"
	DispositionInline     = "inline"
)

var iosUserAgent = regexp.MustCompile(`iPad|iPhone|iPod`)

// IsIOS reports a platform that blocks programmatic downloads.
func IsIOS(userAgent string) bool {
	return iosUserAgent.MatchString(userAgent)
}

// ExportRequest describes one composite. The three overlays are toggled
// independently; FrameID nil picks the tenant's starting frame.
type ExportRequest struct {
	Tenant    *domain.Tenant
	Photo     string
	FrameID   *domain.FrameID
	ShowFrame bool
	ShowLogo  bool
	ShowText  bool
	Caption   string
	UserAgent string
}

// ExportResult is the finished PNG and how it should be delivered.
type ExportResult struct {
	Filename    string
	PNG         []byte
	Disposition string
	Dropped     []string
}

// ExportRecorder counts exports by outcome and times the rasterization.
type ExportRecorder interface {
	RecordExport(tenantID, disposition, outcome string)
	RecordExportDuration(d time.Duration)
}

// ExportService rasterizes the captured still with the tenant overlays.
type ExportService struct {
	assets   ports.AssetLoader
	recorder ExportRecorder
	now      func() time.Time
	logger   *zap.SugaredLogger
}

func NewExportService(assets ports.AssetLoader, recorder ExportRecorder, logger *zap.SugaredLogger) *ExportService {
	return &ExportService{
		assets:   assets,
		recorder: recorder,
		now:      time.Now,
		logger:   logger,
	}
}

// Filename is the download name of an export.
func (s *ExportService) Filename(tenant *domain.Tenant) string {
	return fmt.Sprintf("selfie-%s-%d.png", tenant.Name, s.now().UnixMilli())
}

// Export composes the photo with its overlays. Overlays whose image cannot
// be fetched are left out and listed in Dropped.
func (s *ExportService) Export(ctx context.Context, req ExportRequest) (ExportResult, error) {
	if req.Tenant == nil {
		return ExportResult{}, domain.ErrTenantNotFound
	}
	tenantID := string(req.Tenant.ID)
	disposition := DispositionAttachment
	if IsIOS(req.UserAgent) {
		disposition = DispositionInline
	}

	start := s.now()
	result, err := s.export(ctx, req)
	if s.recorder != nil {
		s.recorder.RecordExportDuration(s.now().Sub(start))
	}
	if err != nil {
		s.record(tenantID, disposition, "failed")
		s.logger.Warnw("Export failed", "tenant_id", tenantID, "error", err)
		return ExportResult{}, err
	}
	result.Disposition = disposition
	s.record(tenantID, disposition, "ok")
	return result, nil
}

func (s *ExportService) export(ctx context.Context, req ExportRequest) (ExportResult, error) {
	if req.Photo == "" {
		return ExportResult{}, domain.ErrNothingCaptured
	}
	photo, err := imaging.DecodeDataURL(req.Photo)
	if err != nil {
		return ExportResult{}, fmt.Errorf("%w: %v", domain.ErrNothingCaptured, err)
	}

	settings := req.Tenant.Settings
	var layers imaging.Layers
	var dropped []string

	if req.ShowFrame {
		frame, err := s.frame(settings, req.FrameID)
		if err != nil {
			return ExportResult{}, err
		}
		if frame.URL != "" {
			if img, ok := s.load(ctx, "frame", frame.URL); ok {
				layers.Frame = img
			} else {
				dropped = append(dropped, "frame")
			}
		}
	}

	if req.ShowLogo && settings.Logo.URL != "" {
		if img, ok := s.load(ctx, "logo", settings.Logo.URL); ok {
			layers.Logo = &imaging.LogoLayer{
				Image:    img,
				HeightPx: domain.LogoHeightPx(settings.Logo.Size),
				Position: imaging.Placement(settings.Logo.Position),
			}
		} else {
			dropped = append(dropped, "logo")
		}
	}

	if req.ShowText && settings.TextOverlay.Enabled && req.Caption != "" {
		style := settings.TextStyle()
		layers.Text = &imaging.TextLayer{
			Text:       req.Caption,
			Top:        style.Position == domain.TextTop,
			FontPx:     style.FontPx,
			Background: imaging.ParseColor(style.Background, color.Black),
			Foreground: imaging.ParseColor(style.Foreground, color.White),
		}
	}

	composite, err := imaging.Compose(photo, layers)
	if err != nil {
		return ExportResult{}, fmt.Errorf("compose: %w", err)
	}
	data, err := imaging.EncodePNG(composite)
	if err != nil {
		return ExportResult{}, err
	}

	return ExportResult{
		Filename: s.Filename(req.Tenant),
		PNG:      data,
		Dropped:  dropped,
	}, nil
}

func (s *ExportService) frame(settings domain.Settings, id *domain.FrameID) (domain.Frame, error) {
	if id == nil {
		f, _ := domain.SelectFrame(settings.Frames)
		return f, nil
	}
	f, ok := settings.FrameByID(*id)
	if !ok {
		return domain.Frame{}, fmt.Errorf("%w: %d", domain.ErrFrameNotFound, *id)
	}
	return f, nil
}

func (s *ExportService) load(ctx context.Context, kind, url string) (image.Image, bool) {
	if s.assets == nil {
		return nil, false
	}
	ctx, span := tracing.TraceOutbound(ctx, "assets", "load_"+kind)
	defer span.End()

	img, err := s.assets.Load(ctx, url)
	if err != nil {
		tracing.RecordError(ctx, err)
		s.logger.Warnw("Overlay dropped from export", "overlay", kind, "url", url, "error", err)
		return nil, false
	}
	return img, true
}

func (s *ExportService) record(tenantID, disposition, outcome string) {
	if s.recorder != nil {
		s.recorder.RecordExport(tenantID, disposition, outcome)
	}
}
