package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisBus fans events out to every server instance through a Redis
// pub/sub channel. Each instance runs Forward to feed its local Broker.
type RedisBus struct {
	rdb     *redis.Client
	channel string
	local   *Broker
	logger  *slog.Logger
}

func NewRedisBus(rdb *redis.Client, channel string, local *Broker, logger *slog.Logger) *RedisBus {
	return &RedisBus{
		rdb:     rdb,
		channel: channel,
		local:   local,
		logger:  logger.With("component", "redis_bus"),
	}
}

func (b *RedisBus) Publish(ctx context.Context, ev Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := b.rdb.Publish(ctx, b.channel, raw).Err(); err != nil {
		return fmt.Errorf("publishing to %s: %w", b.channel, err)
	}
	return nil
}

// Forward relays channel messages into the local broker until ctx is done.
func (b *RedisBus) Forward(ctx context.Context) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribing to %s: %w", b.channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.logger.Warn("dropping malformed event", "error", err)
				continue
			}
			b.local.deliver(ev.UserID, []byte(msg.Payload))
		}
	}
}
