package backup

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (*BackupService, string) {
	t.Helper()
	dir := t.TempDir()
	storage, err := NewFileStorage(dir)
	require.NoError(t, err)
	return NewBackupService(storage, "1"), dir
}

func at(s *BackupService, ts time.Time) {
	s.now = func() time.Time { return ts }
}

func TestBackupService_CreateAndRestore(t *testing.T) {
	svc, dir := newService(t)
	at(svc, time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC))

	name, err := svc.CreateBackup(context.Background(), &BackupData{
		Tenants:  []json.RawMessage{json.RawMessage(`{"id":"tenant_mueller"}`)},
		Metadata: map[string]interface{}{"tenant_count": 1},
	})
	require.NoError(t, err)
	assert.Equal(t, "backup-20260301-123000.json", name)
	assert.FileExists(t, filepath.Join(dir, name))

	restored, err := svc.RestoreBackup(context.Background(), name)
	require.NoError(t, err)
	assert.Equal(t, "1", restored.Version)
	require.Len(t, restored.Tenants, 1)
	assert.JSONEq(t, `{"id":"tenant_mueller"}`, string(restored.Tenants[0]))
}

func TestBackupService_RestoreRejectsBadFiles(t *testing.T) {
	svc, dir := newService(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "backup-20260301-000000.json"), []byte(`{"tenants":[]}`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "backup-20260302-000000.json"), []byte(`not json`), 0o600))

	_, err := svc.RestoreBackup(context.Background(), "backup-20260301-000000.json")
	assert.ErrorContains(t, err, "missing version")
	_, err = svc.RestoreBackup(context.Background(), "backup-20260302-000000.json")
	assert.Error(t, err)
	_, err = svc.RestoreBackup(context.Background(), "backup-20990101-000000.json")
	assert.Error(t, err)
}

func TestBackupService_LatestAndPrune(t *testing.T) {
	svc, dir := newService(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for day := 0; day < 3; day++ {
		at(svc, base.AddDate(0, 0, day))
		_, err := svc.CreateBackup(ctx, &BackupData{})
		require.NoError(t, err)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "backup-garbage.json"), nil, 0o600))

	names, err := svc.ListBackups(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"backup-20260301-000000.json",
		"backup-20260302-000000.json",
		"backup-20260303-000000.json",
	}, names)

	latest, ok, err := svc.Latest(ctx, base.AddDate(0, 0, 1).Add(time.Hour))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "backup-20260302-000000.json", latest)

	_, ok, err = svc.Latest(ctx, base.Add(-time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)

	deleted, err := svc.Prune(ctx, base.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
	names, _ = svc.ListBackups(ctx)
	assert.Equal(t, []string{"backup-20260303-000000.json"}, names)
}

func TestTimeOf(t *testing.T) {
	ts, ok := TimeOf("backup-20260301-123000.json")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC), ts)

	for _, name := range []string{"backup-.json", "other-20260301-123000.json", "backup-20260301-123000.txt"} {
		_, ok := TimeOf(name)
		assert.False(t, ok, name)
	}
}

func TestFileStorage(t *testing.T) {
	dir := t.TempDir()
	storage, err := NewFileStorage(dir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, storage.Save(ctx, "test.txt", strings.NewReader("test data")))

	loaded, err := storage.Load(ctx, "test.txt")
	require.NoError(t, err)
	loaded.Close()

	files, err := storage.List(ctx, "test")
	require.NoError(t, err)
	assert.Equal(t, []string{"test.txt"}, files, "no temporary files left behind")

	require.NoError(t, storage.Delete(ctx, "test.txt"))
	assert.NoFileExists(t, filepath.Join(dir, "test.txt"))

	for _, bad := range []string{"", "../escape.json", ".hidden", "a/b.json"} {
		assert.Error(t, storage.Save(ctx, bad, strings.NewReader("x")), bad)
	}
}
