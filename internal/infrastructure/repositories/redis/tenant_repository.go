package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"selfiebooth/internal/core/domain"
	"selfiebooth/internal/core/ports"
)

const maxUpdateAttempts = 5

type RedisTenantRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisTenantRepository(client *redis.Client, prefix string) ports.TenantRepository {
	return &RedisTenantRepository{client: client, prefix: prefix}
}

func (r *RedisTenantRepository) tenantKey(id domain.TenantID) string {
	return r.prefix + "tenant:" + string(id)
}

func (r *RedisTenantRepository) slugKey(slug string) string {
	return r.prefix + "tenant:slug:" + slug
}

func tenantIndexKey(prefix string) string {
	return prefix + "tenants"
}

// createScript claims the slug and writes the record and index in one step,
// so a reader that finds the slug always finds the tenant.
// KEYS: slug, tenant, index. ARGV: id, record.
var createScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return 0
end
redis.call("SET", KEYS[2], ARGV[2])
redis.call("SADD", KEYS[3], ARGV[1])
redis.call("SET", KEYS[1], ARGV[1])
return 1
`)

func (r *RedisTenantRepository) Create(ctx context.Context, tenant *domain.Tenant) error {
	data, err := json.Marshal(tenant)
	if err != nil {
		return fmt.Errorf("failed to marshal tenant: %w", err)
	}

	keys := []string{r.slugKey(tenant.Slug), r.tenantKey(tenant.ID), tenantIndexKey(r.prefix)}
	created, err := createScript.Run(ctx, r.client, keys, string(tenant.ID), data).Int()
	if err != nil {
		return fmt.Errorf("failed to set tenant in Redis: %w", err)
	}
	if created == 0 {
		return fmt.Errorf("%w: %s", domain.ErrTenantExists, tenant.Slug)
	}
	return nil
}

// List reads the tenant index; ids whose record is gone are skipped.
func (r *RedisTenantRepository) List(ctx context.Context) ([]*domain.Tenant, error) {
	ids, err := r.client.SMembers(ctx, tenantIndexKey(r.prefix)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read tenant index: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	sort.Strings(ids)

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.tenantKey(domain.TenantID(id))
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get tenants from Redis: %w", err)
	}

	tenants := make([]*domain.Tenant, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var tenant domain.Tenant
		if err := json.Unmarshal([]byte(raw), &tenant); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tenant %s: %w", ids[i], err)
		}
		tenants = append(tenants, &tenant)
	}
	return tenants, nil
}

func (r *RedisTenantRepository) GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	id, err := r.client.Get(ctx, r.slugKey(slug)).Result()
	if err == redis.Nil {
		return nil, domain.ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant slug from Redis: %w", err)
	}
	return r.GetByID(ctx, domain.TenantID(id))
}

func (r *RedisTenantRepository) GetByID(ctx context.Context, id domain.TenantID) (*domain.Tenant, error) {
	data, err := r.client.Get(ctx, r.tenantKey(id)).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant from Redis: %w", err)
	}

	var tenant domain.Tenant
	if err := json.Unmarshal(data, &tenant); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tenant: %w", err)
	}
	return &tenant, nil
}

// Update runs fn under WATCH and retries when another writer got there first.
func (r *RedisTenantRepository) Update(ctx context.Context, id domain.TenantID, fn func(*domain.Tenant) error) (*domain.Tenant, error) {
	key := r.tenantKey(id)

	var updated *domain.Tenant
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return domain.ErrTenantNotFound
		}
		if err != nil {
			return err
		}

		var tenant domain.Tenant
		if err := json.Unmarshal(data, &tenant); err != nil {
			return fmt.Errorf("failed to unmarshal tenant: %w", err)
		}
		origID, origSlug := tenant.ID, tenant.Slug
		if err := fn(&tenant); err != nil {
			return err
		}
		tenant.ID, tenant.Slug = origID, origSlug

		out, err := json.Marshal(&tenant)
		if err != nil {
			return fmt.Errorf("failed to marshal tenant: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, 0)
			return nil
		})
		if err == nil {
			updated = &tenant
		}
		return err
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := r.client.Watch(ctx, txf, key)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("%w: tenant %s changed concurrently", domain.ErrVersionConflict, id)
}
