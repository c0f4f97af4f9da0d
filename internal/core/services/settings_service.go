package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"selfiebooth/internal/core/domain"
	"selfiebooth/internal/core/ports"
	"selfiebooth/pkg/utils"
	"selfiebooth/pkg/validation"
)

// SettingsService applies overlay configuration changes of a tenant and
// announces every new version on the event bus.
type SettingsService struct {
	tenants   ports.TenantRepository
	publisher ports.EventPublisher
	frameIDs  *utils.Sequence
	logger    *zap.SugaredLogger
}

func NewSettingsService(tenants ports.TenantRepository, publisher ports.EventPublisher, logger *zap.SugaredLogger) *SettingsService {
	return &SettingsService{
		tenants:   tenants,
		publisher: publisher,
		frameIDs:  utils.NewSequence(),
		logger:    logger,
	}
}

func (s *SettingsService) Get(ctx context.Context, id domain.TenantID) (domain.Settings, error) {
	tenant, err := s.tenants.GetByID(ctx, id)
	if err != nil {
		return domain.Settings{}, err
	}
	return tenant.Settings.Clone(), nil
}

// Patch merges p into the current settings.
func (s *SettingsService) Patch(ctx context.Context, id domain.TenantID, p domain.SettingsPatch) (domain.Settings, error) {
	return s.change(ctx, id, "patch", func(cur domain.Settings) (domain.Settings, error) {
		return domain.ApplyPatch(cur, p)
	})
}

// AddFrame appends an active frame. Name and URL are both required.
func (s *SettingsService) AddFrame(ctx context.Context, id domain.TenantID, name, url string) (domain.Settings, error) {
	name = strings.TrimSpace(name)
	url = strings.TrimSpace(url)
	if err := validation.ValidateFrameName(name); err != nil {
		return domain.Settings{}, fmt.Errorf("%w: %v", domain.ErrInvalidFrame, err)
	}
	if err := validation.ValidateAssetURL(url); err != nil {
		return domain.Settings{}, fmt.Errorf("%w: %v", domain.ErrInvalidFrame, err)
	}

	return s.change(ctx, id, "add_frame", func(cur domain.Settings) (domain.Settings, error) {
		frameID := domain.FrameID(s.frameIDs.Next(int64(cur.MaxFrameID())))
		return cur.WithFrame(frameID, name, url)
	})
}

func (s *SettingsService) RemoveFrame(ctx context.Context, id domain.TenantID, frameID domain.FrameID) (domain.Settings, error) {
	return s.change(ctx, id, "remove_frame", func(cur domain.Settings) (domain.Settings, error) {
		return cur.WithoutFrame(frameID)
	})
}

// SetDefaultFrame makes frameID the only default frame.
func (s *SettingsService) SetDefaultFrame(ctx context.Context, id domain.TenantID, frameID domain.FrameID) (domain.Settings, error) {
	return s.change(ctx, id, "set_default_frame", func(cur domain.Settings) (domain.Settings, error) {
		return cur.WithDefaultFrame(frameID)
	})
}

func (s *SettingsService) change(ctx context.Context, id domain.TenantID, op string, fn func(domain.Settings) (domain.Settings, error)) (domain.Settings, error) {
	var next domain.Settings
	_, err := s.tenants.Update(ctx, id, func(t *domain.Tenant) error {
		updated, err := fn(t.Settings)
		if err != nil {
			return err
		}
		t.Settings = updated
		next = updated
		return nil
	})
	if err != nil {
		return domain.Settings{}, err
	}

	s.logger.Infow("Settings updated", "tenant_id", id, "operation", op, "version", next.Version)

	if s.publisher != nil {
		snapshot := next.Clone()
		event := ports.Event{Type: ports.EventSettingsUpdated, TenantID: id, Settings: &snapshot}
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Warnw("Failed to publish settings event", "tenant_id", id, "error", err)
		}
	}
	return next.Clone(), nil
}
