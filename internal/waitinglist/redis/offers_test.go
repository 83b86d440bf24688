package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickethub/internal/logger"
	wlredis "tickethub/internal/waitinglist/redis"
)

func setupTimers(t *testing.T) (*wlredis.Timers, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return wlredis.NewTimers(client, logger.NewLogger()), mr
}

func TestArmSetsKeyWithTTL(t *testing.T) {
	timers, mr := setupTimers(t)
	ctx := context.Background()

	require.NoError(t, timers.Arm(ctx, "entry-1", 15*time.Minute))

	armed, err := timers.Armed(ctx, "entry-1")
	require.NoError(t, err)
	assert.True(t, armed)
	assert.InDelta(t, 15*time.Minute, mr.TTL("wl_offer:entry-1"), float64(time.Second))
}

func TestArmClampsNonPositiveTTL(t *testing.T) {
	timers, _ := setupTimers(t)
	ctx := context.Background()

	require.NoError(t, timers.Arm(ctx, "entry-1", -time.Second))

	armed, err := timers.Armed(ctx, "entry-1")
	require.NoError(t, err)
	assert.True(t, armed)
}

func TestDisarmRemovesKey(t *testing.T) {
	timers, _ := setupTimers(t)
	ctx := context.Background()

	require.NoError(t, timers.Arm(ctx, "entry-1", time.Minute))
	require.NoError(t, timers.Disarm(ctx, "entry-1"))

	armed, err := timers.Armed(ctx, "entry-1")
	require.NoError(t, err)
	assert.False(t, armed)
}

func TestArmedReportsMissingKey(t *testing.T) {
	timers, _ := setupTimers(t)

	armed, err := timers.Armed(context.Background(), "never-armed")
	require.NoError(t, err)
	assert.False(t, armed)
}

func TestSubscribeDispatchesExpiredOfferKeys(t *testing.T) {
	timers, mr := setupTimers(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	expired := make(chan string, 2)
	timers.Subscribe(ctx, func(entryID string) {
		expired <- entryID
	})
	time.Sleep(50 * time.Millisecond) // let the subscription attach

	// miniredis does not fire keyspace notifications itself, so emit the
	// event the way Redis would.
	mr.Publish("__keyevent@0__:expired", "wl_offer:entry-1")
	mr.Publish("__keyevent@0__:expired", "unrelated:key")

	select {
	case entryID := <-expired:
		assert.Equal(t, "entry-1", entryID)
	case <-time.After(2 * time.Second):
		t.Fatal("expiry notification never arrived")
	}

	select {
	case entryID := <-expired:
		t.Fatalf("unexpected dispatch for %s", entryID)
	case <-time.After(100 * time.Millisecond):
	}
}
