package services

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
)

// StateChannel delivers the change feed of one match to a local handler.
// Deliveries arrive in publish order, at-least-once. The returned
// unsubscribe func is synchronous: after it returns, the handler is not
// invoked again.
type StateChannel interface {
	Subscribe(matchID uint, handler func(MatchChange)) (func(), error)
}

// RedisStateChannel subscribes to the per-match Redis pub/sub channel the
// store publishes on.
type RedisStateChannel struct {
	redis *redis.Client
}

func NewRedisStateChannel(redisClient *redis.Client) *RedisStateChannel {
	return &RedisStateChannel{redis: redisClient}
}

func (c *RedisStateChannel) Subscribe(matchID uint, handler func(MatchChange)) (func(), error) {
	name := matchChannelName(matchID)
	pubsub := c.redis.Subscribe(context.Background(), name)

	// Force the subscription to be established before returning so no
	// commit published after Subscribe returns can be missed.
	if _, err := pubsub.Receive(context.Background()); err != nil {
		pubsub.Close()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range pubsub.Channel() {
			var change MatchChange
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
				log.Printf("Failed to unmarshal change for match %d: %v", matchID, err)
				continue
			}
			handler(change)
		}
	}()

	unsubscribe := func() {
		if err := pubsub.Close(); err != nil {
			log.Printf("Failed to close subscription for match %d: %v", matchID, err)
		}
		<-done
	}
	return unsubscribe, nil
}
