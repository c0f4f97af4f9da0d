package repositories

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"selfiebooth/internal/core/ports"
	"selfiebooth/internal/infrastructure/repositories/memory"
	redisrepo "selfiebooth/internal/infrastructure/repositories/redis"
	"selfiebooth/pkg/config"
)

// RepositoryFactory creates repositories with fallback support
type RepositoryFactory struct {
	useRedis    bool
	redisClient *redis.Client
	prefix      string
	logger      *zap.SugaredLogger
}

// NewRepositoryFactory connects to Redis when enabled and falls back to
// process memory when it cannot.
func NewRepositoryFactory(cfg *config.Config, logger *zap.SugaredLogger) *RepositoryFactory {
	factory := &RepositoryFactory{
		useRedis: cfg.Redis.Enabled,
		prefix:   cfg.Redis.KeyPrefix,
		logger:   logger,
	}

	if cfg.Redis.Enabled {
		client, err := redisrepo.NewRedisClient(redisrepo.Options{
			Address:   cfg.Redis.Address,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			PoolSize:  cfg.Redis.PoolSize,
			KeyPrefix: cfg.Redis.KeyPrefix,
		}, logger)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to memory repositories",
				"error", err,
			)
			factory.useRedis = false
		} else {
			factory.redisClient = client
			logger.Info("using Redis repositories")
		}
	}

	if !factory.useRedis {
		logger.Info("using memory repositories")
	}

	return factory
}

// UsingRedis reports whether Redis backs the stores.
func (f *RepositoryFactory) UsingRedis() bool {
	return f.useRedis && f.redisClient != nil
}

// RedisClient is nil when running on memory.
func (f *RepositoryFactory) RedisClient() *redis.Client {
	return f.redisClient
}

func (f *RepositoryFactory) CreateTenantRepository() ports.TenantRepository {
	if f.UsingRedis() {
		return redisrepo.NewRedisTenantRepository(f.redisClient, f.prefix)
	}
	return memory.NewMemoryTenantRepository()
}

func (f *RepositoryFactory) CreateSessionStore() ports.SessionStore {
	if f.UsingRedis() {
		return redisrepo.NewRedisSessionStore(f.redisClient, f.prefix)
	}
	return memory.NewMemorySessionStore()
}

// CreateUserRepository always uses memory; accounts are demo data.
func (f *RepositoryFactory) CreateUserRepository() ports.UserRepository {
	return memory.NewMemoryUserRepository()
}

// Close closes Redis connection if used
func (f *RepositoryFactory) Close() error {
	if f.redisClient != nil {
		return redisrepo.CloseRedisClient(f.redisClient)
	}
	return nil
}

// HealthCheck checks Redis connection health
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.UsingRedis() {
		return f.redisClient.Ping(ctx).Err()
	}
	return nil
}
