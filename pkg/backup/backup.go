package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

const (
	namePrefix = "backup-"
	nameSuffix = ".json"
	nameLayout = "20060102-150405"
)

// BackupData is one snapshot. Records are kept raw so this package does not
// depend on the stored types.
type BackupData struct {
	Version   string                 `json:"version"`
	Timestamp time.Time              `json:"timestamp"`
	Tenants   []json.RawMessage      `json:"tenants"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Storage keeps named backup blobs.
type Storage interface {
	Save(ctx context.Context, name string, data io.Reader) error
	Load(ctx context.Context, name string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, name string) error
}

type BackupService struct {
	storage Storage
	version string
	now     func() time.Time
}

func NewBackupService(storage Storage, version string) *BackupService {
	return &BackupService{
		storage: storage,
		version: version,
		now:     time.Now,
	}
}

// Name is the blob name of a backup taken at t.
func Name(t time.Time) string {
	return namePrefix + t.UTC().Format(nameLayout) + nameSuffix
}

// TimeOf parses the timestamp out of a backup name.
func TimeOf(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, namePrefix) || !strings.HasSuffix(name, nameSuffix) {
		return time.Time{}, false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, namePrefix), nameSuffix)
	t, err := time.Parse(nameLayout, stamp)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// CreateBackup stamps data and stores it, returning the backup name.
func (bs *BackupService) CreateBackup(ctx context.Context, data *BackupData) (string, error) {
	data.Version = bs.version
	data.Timestamp = bs.now().UTC()

	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal backup data: %w", err)
	}

	name := Name(data.Timestamp)
	if err := bs.storage.Save(ctx, name, bytes.NewReader(payload)); err != nil {
		return "", fmt.Errorf("failed to save backup: %w", err)
	}
	return name, nil
}

// RestoreBackup loads a stored backup.
func (bs *BackupService) RestoreBackup(ctx context.Context, name string) (*BackupData, error) {
	reader, err := bs.storage.Load(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to load backup: %w", err)
	}
	defer reader.Close()

	var data BackupData
	if err := json.NewDecoder(reader).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode backup %s: %w", name, err)
	}
	if data.Version == "" {
		return nil, fmt.Errorf("invalid backup %s: missing version", name)
	}
	return &data, nil
}

// ListBackups returns the backup names, oldest first.
func (bs *BackupService) ListBackups(ctx context.Context) ([]string, error) {
	names, err := bs.storage.List(ctx, namePrefix)
	if err != nil {
		return nil, err
	}
	out := names[:0]
	for _, n := range names {
		if _, ok := TimeOf(n); ok {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Latest returns the newest backup taken at or before t.
func (bs *BackupService) Latest(ctx context.Context, t time.Time) (string, bool, error) {
	names, err := bs.ListBackups(ctx)
	if err != nil {
		return "", false, err
	}
	for i := len(names) - 1; i >= 0; i-- {
		if ts, _ := TimeOf(names[i]); !ts.After(t) {
			return names[i], true, nil
		}
	}
	return "", false, nil
}

// Prune deletes backups older than cutoff and returns how many went.
func (bs *BackupService) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	names, err := bs.ListBackups(ctx)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, n := range names {
		ts, _ := TimeOf(n)
		if !ts.Before(cutoff) {
			continue
		}
		if err := bs.storage.Delete(ctx, n); err != nil {
			return deleted, fmt.Errorf("failed to delete backup %s: %w", n, err)
		}
		deleted++
	}
	return deleted, nil
}

func (bs *BackupService) DeleteBackup(ctx context.Context, name string) error {
	return bs.storage.Delete(ctx, name)
}
