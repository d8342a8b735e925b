package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/vetclinic-platform/internal/appointments"
	"github.com/wolfman30/vetclinic-platform/pkg/logging"
)

const (
	kindAppointments = "appointments"
	kindDashboard    = "dashboard"

	defaultCacheTTL = 30 * time.Second
)

// Cache stores computed views for a short time.
type Cache interface {
	Get(ctx context.Context, tenantID, kind string, dest any) (bool, error)
	Set(ctx context.Context, tenantID, kind string, value any) error
	Invalidate(ctx context.Context, tenantID string) error
}

// RedisCache keeps views in Redis under vetclinic:stats:{tenant}:{kind}.
type RedisCache struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

func NewRedisCache(client *redis.Client, ttl time.Duration, logger *logging.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RedisCache{redis: client, ttl: ttl, logger: logger}
}

func (c *RedisCache) key(tenantID, kind string) string {
	return fmt.Sprintf("vetclinic:stats:%s:%s", tenantID, kind)
}

func (c *RedisCache) Get(ctx context.Context, tenantID, kind string, dest any) (bool, error) {
	data, err := c.redis.Get(ctx, c.key(tenantID, kind)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stats: cache get: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("stats: cache decode: %w", err)
	}
	return true, nil
}

func (c *RedisCache) Set(ctx context.Context, tenantID, kind string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("stats: cache encode: %w", err)
	}
	if err := c.redis.Set(ctx, c.key(tenantID, kind), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("stats: cache set: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, tenantID string) error {
	if err := c.redis.Del(ctx, c.key(tenantID, kindAppointments), c.key(tenantID, kindDashboard)).Err(); err != nil {
		return fmt.Errorf("stats: cache invalidate: %w", err)
	}
	return nil
}

// AppointmentChanged drops the tenant's cached views.
func (c *RedisCache) AppointmentChanged(ctx context.Context, evt appointments.Event) {
	if err := c.Invalidate(ctx, evt.TenantID); err != nil {
		c.logger.Warn("stats: cache invalidation failed", "tenant_id", evt.TenantID, "error", err)
	}
}

var (
	_ Cache                 = (*RedisCache)(nil)
	_ appointments.Listener = (*RedisCache)(nil)
)
