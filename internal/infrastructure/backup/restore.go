package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"selfiebooth/internal/core/domain"
	"selfiebooth/internal/core/ports"
	"selfiebooth/pkg/backup"
)

// RestoreService loads tenants from a snapshot back into the store.
type RestoreService struct {
	backups *backup.BackupService
	tenants ports.TenantRepository
	logger  *zap.SugaredLogger
}

func NewRestoreService(backups *backup.BackupService, tenants ports.TenantRepository, logger *zap.SugaredLogger) *RestoreService {
	return &RestoreService{backups: backups, tenants: tenants, logger: logger}
}

type RestoreOptions struct {
	// OverwriteExisting replaces tenants already in the store; otherwise
	// they are kept as they are.
	OverwriteExisting bool
	// PointInTime picks the newest backup at or before it. Zero means now.
	PointInTime time.Time
}

// RestoreResult counts what a restore did.
type RestoreResult struct {
	Backup   string `json:"backup"`
	Created  int    `json:"created"`
	Replaced int    `json:"replaced"`
	Skipped  int    `json:"skipped"`
}

// RestoreLatest restores the newest backup matching opts. ok is false when
// there is none.
func (rs *RestoreService) RestoreLatest(ctx context.Context, opts RestoreOptions) (RestoreResult, bool, error) {
	at := opts.PointInTime
	if at.IsZero() {
		at = time.Now()
	}
	name, ok, err := rs.backups.Latest(ctx, at)
	if err != nil || !ok {
		return RestoreResult{}, false, err
	}
	res, err := rs.RestoreFromBackup(ctx, name, opts)
	return res, true, err
}

func (rs *RestoreService) RestoreFromBackup(ctx context.Context, name string, opts RestoreOptions) (RestoreResult, error) {
	data, err := rs.backups.RestoreBackup(ctx, name)
	if err != nil {
		return RestoreResult{}, err
	}

	res := RestoreResult{Backup: name}
	for _, raw := range data.Tenants {
		var tenant domain.Tenant
		if err := json.Unmarshal(raw, &tenant); err != nil {
			return res, fmt.Errorf("failed to decode tenant in %s: %w", name, err)
		}
		if tenant.ID == "" || tenant.Slug == "" {
			rs.logger.Warnw("Skipping tenant without id or slug", "backup_name", name)
			res.Skipped++
			continue
		}

		_, err := rs.tenants.GetByID(ctx, tenant.ID)
		switch {
		case errors.Is(err, domain.ErrTenantNotFound):
			if err := rs.tenants.Create(ctx, &tenant); err != nil {
				if errors.Is(err, domain.ErrTenantExists) {
					res.Skipped++
					continue
				}
				return res, fmt.Errorf("failed to create tenant %s: %w", tenant.ID, err)
			}
			res.Created++
		case err != nil:
			return res, fmt.Errorf("failed to load tenant %s: %w", tenant.ID, err)
		case !opts.OverwriteExisting:
			res.Skipped++
		default:
			restored := tenant
			if _, err := rs.tenants.Update(ctx, tenant.ID, func(t *domain.Tenant) error {
				*t = restored
				return nil
			}); err != nil {
				return res, fmt.Errorf("failed to replace tenant %s: %w", tenant.ID, err)
			}
			res.Replaced++
		}
	}

	rs.logger.Infow("Restore completed", "backup_name", name,
		"created", res.Created, "replaced", res.Replaced, "skipped", res.Skipped)
	return res, nil
}
