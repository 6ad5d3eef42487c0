package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agenda/internal/model"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	logger := zerolog.Nop()
	return New(client, time.Minute, &logger)
}

func TestReadWriteRoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	key := SlotsKey("centro", "2026-09-07", 60)
	slots := []model.TimeSlot{
		{Time: "09:00", Available: true},
		{Time: "09:30", Available: false},
	}

	var out []model.TimeSlot
	assert.False(t, c.Read(ctx, key, &out))

	c.Write(ctx, key, slots)
	require.True(t, c.Read(ctx, key, &out))
	assert.Equal(t, slots, out)
}

func TestInvalidateDayDropsAllDurations(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	c.Write(ctx, SlotsKey("centro", "2026-09-07", 30), []model.TimeSlot{{Time: "09:00", Available: true}})
	c.Write(ctx, SlotsKey("centro", "2026-09-07", 60), []model.TimeSlot{{Time: "09:00", Available: true}})
	c.Write(ctx, SlotsKey("centro", "2026-09-08", 60), []model.TimeSlot{{Time: "09:00", Available: true}})
	c.Write(ctx, SlotsKey("jardins", "2026-09-07", 60), []model.TimeSlot{{Time: "09:00", Available: true}})

	c.InvalidateDay(ctx, "centro", "2026-09-07")

	var out []model.TimeSlot
	assert.False(t, c.Read(ctx, SlotsKey("centro", "2026-09-07", 30), &out))
	assert.False(t, c.Read(ctx, SlotsKey("centro", "2026-09-07", 60), &out))
	assert.True(t, c.Read(ctx, SlotsKey("centro", "2026-09-08", 60), &out))
	assert.True(t, c.Read(ctx, SlotsKey("jardins", "2026-09-07", 60), &out))

	c.InvalidateStudio(ctx, "centro")
	assert.False(t, c.Read(ctx, SlotsKey("centro", "2026-09-08", 60), &out))
	assert.True(t, c.Read(ctx, SlotsKey("jardins", "2026-09-07", 60), &out))
}

func TestNilCacheIsNoOp(t *testing.T) {
	var c *Cache
	ctx := context.Background()

	var out []model.TimeSlot
	assert.False(t, c.Read(ctx, "k", &out))
	c.Write(ctx, "k", out)
	c.InvalidateDay(ctx, "centro", "2026-09-07")
}
