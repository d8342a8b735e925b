package stats

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/vetclinic-platform/internal/appointments"
	"github.com/wolfman30/vetclinic-platform/internal/scheduling"
	"github.com/wolfman30/vetclinic-platform/pkg/logging"
)

type fixedLocation struct{ loc *time.Location }

func (f fixedLocation) BusinessHours(context.Context, string) (scheduling.BusinessHours, error) {
	return scheduling.StandardHours(f.loc), nil
}

func newRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client, time.Minute, logging.Discard()), mr
}

func TestRedisCacheRoundTripAndTTL(t *testing.T) {
	cache, mr := newRedisCache(t)
	ctx := context.Background()

	var miss DashboardStats
	ok, err := cache.Get(ctx, "tenant-a", kindDashboard, &miss)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, "tenant-a", kindDashboard, DashboardStats{TotalPatients: 7}))
	assert.True(t, mr.Exists("vetclinic:stats:tenant-a:dashboard"))

	var hit DashboardStats
	ok, err = cache.Get(ctx, "tenant-a", kindDashboard, &hit)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 7, hit.TotalPatients)

	mr.FastForward(2 * time.Minute)
	ok, err = cache.Get(ctx, "tenant-a", kindDashboard, &hit)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestServiceServesFromCacheUntilAppointmentChanges(t *testing.T) {
	cache, mr := newRedisCache(t)
	src := &fakeSource{snap: Snapshot{Total: 3}}
	svc := NewService(src, nil, nil, WithCache(cache), WithClock(func() time.Time { return baseNow }))
	ctx := context.Background()

	first, err := svc.AppointmentStats(ctx, "tenant-a")
	require.NoError(t, err)
	second, err := svc.AppointmentStats(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, src.calls)

	cache.AppointmentChanged(ctx, appointments.Event{Kind: appointments.EventCreated, TenantID: "tenant-a"})
	assert.False(t, mr.Exists("vetclinic:stats:tenant-a:appointments"))

	src.snap.Total = 4
	third, err := svc.AppointmentStats(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, 4, third.Total)
	assert.Equal(t, 2, src.calls)
}

func TestServiceIgnoresCacheOutage(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewRedisCache(client, time.Minute, logging.Discard())
	src := &fakeSource{snap: Snapshot{Total: 1}}
	svc := NewService(src, nil, nil, WithCache(cache))

	out, err := svc.AppointmentStats(context.Background(), "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, 1, out.Total)
}
