package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"selfiebooth/internal/core/ports"
	"selfiebooth/pkg/backup"
)

// Scheduler snapshots every tenant (settings, frames and subscription) on a
// fixed interval and prunes snapshots past the retention window.
type Scheduler struct {
	backups       *backup.BackupService
	tenants       ports.TenantRepository
	lockClient    *redis.Client
	lockKey       string
	interval      time.Duration
	retentionDays int
	now           func() time.Time
	logger        *zap.SugaredLogger
	stopChan      chan struct{}
}

type Config struct {
	Interval      time.Duration
	RetentionDays int
	// LockClient, when set, makes only one instance per interval write a
	// backup of the shared store.
	LockClient *redis.Client
	LockKey    string
}

func NewScheduler(backups *backup.BackupService, tenants ports.TenantRepository, cfg Config, logger *zap.SugaredLogger) *Scheduler {
	return &Scheduler{
		backups:       backups,
		tenants:       tenants,
		lockClient:    cfg.LockClient,
		lockKey:       cfg.LockKey,
		interval:      cfg.Interval,
		retentionDays: cfg.RetentionDays,
		now:           time.Now,
		logger:        logger,
		stopChan:      make(chan struct{}),
	}
}

// Start runs a backup right away and then on every tick until ctx is done or
// Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runBackup(ctx)
	for {
		select {
		case <-ticker.C:
			s.runBackup(ctx)
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) Stop() {
	close(s.stopChan)
}

func (s *Scheduler) runBackup(ctx context.Context) {
	if s.lockClient != nil {
		claimed, err := s.claimSlot(ctx)
		if err != nil {
			s.logger.Warnw("Backup slot unavailable", "error", err)
			return
		}
		if !claimed {
			s.logger.Debugw("Backup taken by another instance")
			return
		}
	}

	name, err := s.Backup(ctx)
	if err != nil {
		s.logger.Errorw("Scheduled backup failed", "error", err)
		return
	}
	s.logger.Infow("Backup created", "backup_name", name)

	cutoff := s.now().AddDate(0, 0, -s.retentionDays)
	deleted, err := s.backups.Prune(ctx, cutoff)
	if err != nil {
		s.logger.Warnw("Failed to prune old backups", "error", err)
	} else if deleted > 0 {
		s.logger.Infow("Old backups pruned", "deleted", deleted, "cutoff", cutoff)
	}
}

// Backup writes one snapshot of the tenant store.
func (s *Scheduler) Backup(ctx context.Context) (string, error) {
	tenants, err := s.tenants.List(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list tenants: %w", err)
	}

	data := &backup.BackupData{
		Tenants:  make([]json.RawMessage, 0, len(tenants)),
		Metadata: map[string]interface{}{"tenant_count": len(tenants), "backup_type": "scheduled"},
	}
	for _, t := range tenants {
		raw, err := json.Marshal(t)
		if err != nil {
			return "", fmt.Errorf("failed to marshal tenant %s: %w", t.ID, err)
		}
		data.Tenants = append(data.Tenants, raw)
	}
	return s.backups.CreateBackup(ctx, data)
}

// claimSlot marks the current interval as taken. The marker expires with the
// interval, so exactly one instance backs up per slot.
func (s *Scheduler) claimSlot(ctx context.Context) (bool, error) {
	slot := s.now().Truncate(s.interval).Unix()
	key := fmt.Sprintf("%s:%d", s.lockKey, slot)
	return s.lockClient.SetNX(ctx, key, "1", s.interval).Result()
}
