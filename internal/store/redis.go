package store

import (
	"context"
	"encoding/json"
	"time"

	"noticeboard-go/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	notificationChannel = "notification_events"
	clickHintTTL        = 15 * time.Minute
)

// RedisStore carries the live-update channel and one-shot click hints.
// Durable state lives in PostgreSQL; everything here is ephemeral.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(opts *redis.Options) *RedisStore {
	rdb := redis.NewClient(opts)
	return &RedisStore{client: rdb}
}

// PublishNotification broadcasts a freshly created notification to SSE listeners.
func (s *RedisStore) PublishNotification(ctx context.Context, n models.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, notificationChannel, data).Err()
}

func (s *RedisStore) Subscribe(ctx context.Context) *redis.PubSub {
	return s.client.Subscribe(ctx, notificationChannel)
}

// SaveClickHint remembers which notification a push-opened URL belongs to.
// The hint lives behind an opaque token and expires if never consumed.
func (s *RedisStore) SaveClickHint(ctx context.Context, token, notificationID string) error {
	return s.client.Set(ctx, "clickhint:"+token, notificationID, clickHintTTL).Err()
}

// TakeClickHint consumes a hint exactly once. A missing or already
// consumed token returns "" with no error.
func (s *RedisStore) TakeClickHint(ctx context.Context, token string) (string, error) {
	id, err := s.client.GetDel(ctx, "clickhint:"+token).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return id, nil
}
