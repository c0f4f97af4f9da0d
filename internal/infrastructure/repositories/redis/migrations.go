package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const currentSchemaVersion = 3

// Migration moves the key layout under prefix one version up or down.
type Migration struct {
	Version int
	Up      func(ctx context.Context, client *redis.Client, prefix string) error
	Down    func(ctx context.Context, client *redis.Client, prefix string) error
}

func schemaVersionKey(prefix string) string {
	return prefix + "schema:version"
}

// Migrate runs all pending migrations
func Migrate(ctx context.Context, client *redis.Client, prefix string, logger *zap.SugaredLogger) error {
	currentVersion, err := getSchemaVersion(ctx, client, prefix)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	if currentVersion >= currentSchemaVersion {
		if logger != nil {
			logger.Infow("schema is up to date",
				"current_version", currentVersion,
				"target_version", currentSchemaVersion,
			)
		}
		return nil
	}

	for _, migration := range getMigrations() {
		if migration.Version <= currentVersion {
			continue
		}
		if logger != nil {
			logger.Infow("running migration", "version", migration.Version)
		}

		if err := migration.Up(ctx, client, prefix); err != nil {
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}
		if err := setSchemaVersion(ctx, client, prefix, migration.Version); err != nil {
			return fmt.Errorf("failed to update schema version: %w", err)
		}
	}

	if logger != nil {
		logger.Infow("all migrations completed", "final_version", currentSchemaVersion)
	}
	return nil
}

func getSchemaVersion(ctx context.Context, client *redis.Client, prefix string) (int, error) {
	val, err := client.Get(ctx, schemaVersionKey(prefix)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return val, nil
}

func setSchemaVersion(ctx context.Context, client *redis.Client, prefix string, version int) error {
	return client.Set(ctx, schemaVersionKey(prefix), version, 0).Err()
}

// deleteMatching removes every key matching pattern.
func deleteMatching(ctx context.Context, client *redis.Client, pattern string) error {
	iter := client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func getMigrations() []Migration {
	return []Migration{
		{
			// 1: tenants stored as JSON under tenant:<id> with a slug index.
			Version: 1,
			Up: func(ctx context.Context, client *redis.Client, prefix string) error {
				return nil
			},
			Down: func(ctx context.Context, client *redis.Client, prefix string) error {
				if err := deleteMatching(ctx, client, prefix+"tenant:*"); err != nil {
					return err
				}
				return nil
			},
		},
		{
			// 2: session blobs moved from one hash per client to one key per
			// entry so every entry carries its own TTL.
			Version: 2,
			Up: func(ctx context.Context, client *redis.Client, prefix string) error {
				iter := client.Scan(ctx, 0, prefix+"client:*", 100).Iterator()
				for iter.Next(ctx) {
					hashKey := iter.Val()
					clientID := hashKey[len(prefix+"client:"):]
					fields, err := client.HGetAll(ctx, hashKey).Result()
					if err != nil {
						return err
					}
					for field, value := range fields {
						if err := client.Set(ctx, sessionKey(prefix, clientID, field), value, 0).Err(); err != nil {
							return err
						}
					}
					if err := client.Del(ctx, hashKey).Err(); err != nil {
						return err
					}
				}
				return iter.Err()
			},
			Down: func(ctx context.Context, client *redis.Client, prefix string) error {
				return deleteMatching(ctx, client, prefix+"session:*")
			},
		},
		{
			// 3: tenant ids indexed in a set so tenants can be listed for backups.
			Version: 3,
			Up: func(ctx context.Context, client *redis.Client, prefix string) error {
				iter := client.Scan(ctx, 0, prefix+"tenant:*", 100).Iterator()
				for iter.Next(ctx) {
					id := strings.TrimPrefix(iter.Val(), prefix+"tenant:")
					if strings.HasPrefix(id, "slug:") {
						continue
					}
					if err := client.SAdd(ctx, tenantIndexKey(prefix), id).Err(); err != nil {
						return err
					}
				}
				return iter.Err()
			},
			Down: func(ctx context.Context, client *redis.Client, prefix string) error {
				return client.Del(ctx, tenantIndexKey(prefix)).Err()
			},
		},
	}
}
