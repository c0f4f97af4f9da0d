package backup

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"selfiebooth/internal/core/domain"
	"selfiebooth/internal/core/ports"
	"selfiebooth/internal/infrastructure/repositories/memory"
	"selfiebooth/pkg/backup"
)

func seeded(t *testing.T) ports.TenantRepository {
	t.Helper()
	repo := memory.NewMemoryTenantRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &domain.Tenant{
		ID: "tenant_mueller", Slug: "mueller", Name: "Fahrschule Mueller",
		Settings: domain.Settings{Version: 4, PrimaryColor: "#1E40AF"},
	}))
	require.NoError(t, repo.Create(ctx, &domain.Tenant{ID: "tenant_schmidt", Slug: "schmidt", Name: "Fahrschule Schmidt"}))
	return repo
}

func newBackups(t *testing.T) *backup.BackupService {
	t.Helper()
	storage, err := backup.NewFileStorage(t.TempDir())
	require.NoError(t, err)
	return backup.NewBackupService(storage, "1")
}

func TestBackupAndRestore(t *testing.T) {
	log := zaptest.NewLogger(t).Sugar()
	ctx := context.Background()
	backups := newBackups(t)

	scheduler := NewScheduler(backups, seeded(t), Config{Interval: time.Hour, RetentionDays: 7}, log)
	name, err := scheduler.Backup(ctx)
	require.NoError(t, err)

	// A fresh store, as after a restart on memory repositories.
	target := memory.NewMemoryTenantRepository()
	require.NoError(t, target.Create(ctx, &domain.Tenant{ID: "tenant_schmidt", Slug: "schmidt", Name: "Neu"}))

	restore := NewRestoreService(backups, target, log)
	res, ok, err := restore.RestoreLatest(ctx, RestoreOptions{})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, RestoreResult{Backup: name, Created: 1, Skipped: 1}, res)

	mueller, err := target.GetBySlug(ctx, "mueller")
	require.NoError(t, err)
	assert.Equal(t, int64(4), mueller.Settings.Version)
	schmidt, _ := target.GetByID(ctx, "tenant_schmidt")
	assert.Equal(t, "Neu", schmidt.Name)

	res, err = restore.RestoreFromBackup(ctx, name, RestoreOptions{OverwriteExisting: true})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Replaced)
	schmidt, _ = target.GetByID(ctx, "tenant_schmidt")
	assert.Equal(t, "Fahrschule Schmidt", schmidt.Name)
}

func TestRestoreLatest_NoBackups(t *testing.T) {
	restore := NewRestoreService(newBackups(t), memory.NewMemoryTenantRepository(), zaptest.NewLogger(t).Sugar())
	_, ok, err := restore.RestoreLatest(context.Background(), RestoreOptions{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestScheduler_SingleInstancePerInterval(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	backups := newBackups(t)
	repo := seeded(t)
	log := zaptest.NewLogger(t).Sugar()
	cfg := Config{Interval: time.Hour, RetentionDays: 7, LockClient: client, LockKey: "booth:lock:backup"}

	first := NewScheduler(backups, repo, cfg, log)
	second := NewScheduler(backups, repo, cfg, log)
	fixed := func() time.Time { return time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC) }
	first.now, second.now = fixed, fixed
	first.runBackup(context.Background())
	second.runBackup(context.Background())

	names, err := backups.ListBackups(context.Background())
	require.NoError(t, err)
	assert.Len(t, names, 1)
}

func TestScheduler_StartStop(t *testing.T) {
	backups := newBackups(t)
	scheduler := NewScheduler(backups, seeded(t), Config{Interval: time.Hour, RetentionDays: 7}, zaptest.NewLogger(t).Sugar())

	done := make(chan struct{})
	go func() {
		scheduler.Start(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool {
		names, _ := backups.ListBackups(context.Background())
		return len(names) == 1
	}, 2*time.Second, 10*time.Millisecond)

	scheduler.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
