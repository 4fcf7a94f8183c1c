package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
	"github.com/go-redis/redis/v8"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient connects and pings the server.
func NewRedisClient(ctx context.Context, config RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

// envelope is the message published on the channel.
type envelope struct {
	RecipientIDs []string         `json:"recipient_ids"`
	Event        payroll.RunEvent `json:"event"`
}

// Publisher is the subset of the redis client used to publish.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisNotifier publishes run events so every API instance can forward them
// to its own SSE subscribers.
type RedisNotifier struct {
	client  Publisher
	channel string
}

func NewRedisNotifier(client Publisher, channel string) *RedisNotifier {
	return &RedisNotifier{client: client, channel: channel}
}

func (n *RedisNotifier) Notify(ctx context.Context, recipientIDs []string, runID string, event payroll.RunEvent) error {
	payload, err := json.Marshal(envelope{RecipientIDs: recipientIDs, Event: event})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event for run %s: %w", runID, err)
	}
	return nil
}

// Relay consumes the channel and hands each event to the local notifier until
// ctx is done.
func Relay(ctx context.Context, client *redis.Client, channel string, local payroll.Notifier) error {
	sub := client.Subscribe(ctx, channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			if err := dispatch(ctx, []byte(msg.Payload), local); err != nil {
				slog.Warn("dropping malformed payroll event", "channel", channel, "error", err)
			}
		}
	}
}

func dispatch(ctx context.Context, payload []byte, local payroll.Notifier) error {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return err
	}
	return local.Notify(ctx, env.RecipientIDs, env.Event.RunID, env.Event)
}
