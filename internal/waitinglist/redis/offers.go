package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"tickethub/internal/logger"
)

const offerKeyPrefix = "wl_offer:"

// Timers schedules offer expiry through Redis TTL keys. When a key expires,
// the keyspace notification drives the waiting-list expiry callback, so no
// in-process scheduler survives restarts — the data does.
type Timers struct {
	Client *redis.Client
	Logger *logger.Logger
}

func NewTimers(client *redis.Client, log *logger.Logger) *Timers {
	return &Timers{Client: client, Logger: log}
}

// EnableKeyspaceNotifications turns on expired-event notifications. Safe to
// call on every startup.
func (t *Timers) EnableKeyspaceNotifications(ctx context.Context) error {
	_, err := t.Client.ConfigSet(ctx, "notify-keyspace-events", "Ex").Result()
	return err
}

// Arm schedules expiry for a waiting-list entry. The key value records the
// event so the expiry handler does not need a lookup before acting.
func (t *Timers) Arm(ctx context.Context, entryID string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Millisecond
	}
	return t.Client.Set(ctx, offerKeyPrefix+entryID, "1", ttl).Err()
}

// Disarm drops the timer for an entry that was purchased or released.
func (t *Timers) Disarm(ctx context.Context, entryID string) error {
	return t.Client.Del(ctx, offerKeyPrefix+entryID).Err()
}

// Armed reports whether a timer currently exists for the entry.
func (t *Timers) Armed(ctx context.Context, entryID string) (bool, error) {
	n, err := t.Client.Exists(ctx, offerKeyPrefix+entryID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Subscribe listens for expired offer keys and invokes handler with the
// entry id. It runs until ctx is cancelled.
func (t *Timers) Subscribe(ctx context.Context, handler func(entryID string)) {
	channel := fmt.Sprintf("__keyevent@%d__:expired", t.Client.Options().DB)
	pubsub := t.Client.PSubscribe(ctx, channel)
	t.Logger.Info("REDIS", fmt.Sprintf("Subscribed to offer expiry notifications on %s", channel))

	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-pubsub.Channel():
				if !ok {
					return
				}
				if !strings.HasPrefix(msg.Payload, offerKeyPrefix) {
					continue
				}
				entryID := strings.TrimPrefix(msg.Payload, offerKeyPrefix)
				t.Logger.Info("WAITLIST", fmt.Sprintf("Offer timer expired for entry %s", entryID))
				handler(entryID)
			}
		}
	}()
}
