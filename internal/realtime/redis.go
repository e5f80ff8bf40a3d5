package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const channelPrefix = "auction:"

// NewRedisClient connects and pings the Redis server used for cross-node
// event fanout.
func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

// RedisBridge fans events out across nodes: Publish goes to a Redis channel
// keyed by auction id, and a background subscription re-injects every message
// (including this node's own) into the local hub. With the bridge in place
// the hub itself is only ever fed from Redis, so each event reaches local
// subscribers exactly once.
type RedisBridge struct {
	hub    *Hub
	client *redis.Client
}

func NewRedisBridge(hub *Hub, client *redis.Client) *RedisBridge {
	return &RedisBridge{
		hub:    hub,
		client: client,
	}
}

// Publish validates the event and hands it to Redis. Local delivery happens
// when the subscription loop receives it back.
func (b *RedisBridge) Publish(event Event) error {
	if err := event.Validate(); err != nil {
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := b.client.Publish(ctx, channelPrefix+event.AuctionID, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event to redis: %w", err)
	}
	return nil
}

// Start consumes auction channels until the context is cancelled.
func (b *RedisBridge) Start(ctx context.Context) {
	logger := log.With().Str("component", "redis_bridge").Logger()
	logger.Info().Msg("starting redis event bridge")

	pubsub := b.client.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down redis event bridge")
			return
		case msg, ok := <-pubsub.Channel():
			if !ok {
				logger.Warn().Msg("redis subscription closed")
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				logger.Error().Err(err).Str("channel", msg.Channel).Msg("dropping malformed event")
				continue
			}

			if err := b.hub.Publish(event); err != nil {
				logger.Error().Err(err).Str("channel", msg.Channel).Msg("dropping invalid event")
			}
		}
	}
}
