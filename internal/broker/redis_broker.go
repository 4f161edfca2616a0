package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Baaaki/taskvault/pkg/logger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const eventBuffer = 100

// NewRedisClient parses redisURL and checks the server answers.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return client, nil
}

// RedisTaskBroker implements TaskEventBroker with one pub/sub channel per owner
type RedisTaskBroker struct {
	client *redis.Client
}

func NewRedisTaskBroker(client *redis.Client) *RedisTaskBroker {
	return &RedisTaskBroker{client: client}
}

func ownerChannel(ownerID uuid.UUID) string {
	return fmt.Sprintf("tasks:%s", ownerID)
}

func (r *RedisTaskBroker) Publish(ctx context.Context, event TaskEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return r.client.Publish(ctx, ownerChannel(event.OwnerID), data).Err()
}

func (r *RedisTaskBroker) Subscribe(ctx context.Context, ownerID uuid.UUID) (*Subscription, error) {
	pubsub := r.client.Subscribe(ctx, ownerChannel(ownerID))

	// Wait for the subscribe confirmation so no event published after this
	// call returns can be missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	events := make(chan TaskEvent, eventBuffer)
	msgs := pubsub.Channel()

	go func() {
		defer close(events)
		defer pubsub.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case redisMsg, ok := <-msgs:
				if !ok {
					return
				}

				var event TaskEvent
				if err := json.Unmarshal([]byte(redisMsg.Payload), &event); err != nil {
					logger.Log.Warn("Dropping malformed task event",
						zap.String("channel", redisMsg.Channel),
						zap.Error(err),
					)
					continue
				}
				if event.OwnerID != ownerID {
					continue
				}

				select {
				case events <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return newSubscription(events, pubsub.Close), nil
}

// Close closes the underlying client.
func (r *RedisTaskBroker) Close() error {
	return r.client.Close()
}
