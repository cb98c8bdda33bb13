package audit

import (
	"context"
	"time"

	"casetrack/core"
	"casetrack/metrics"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Stream is the Redis stream activity entries are published to.
const Stream = "casetrack:activity"

const publishTimeout = 2 * time.Second

// RedisPublisher mirrors recorded activity entries onto a Redis stream so
// external consumers (SIEM forwarders, notification workers) can follow the
// audit trail live. Publishing is best effort: failures are logged and
// counted, never surfaced.
type RedisPublisher struct {
	client *redis.Client
	logger *zap.SugaredLogger
}

// NewRedisPublisher creates a publisher over an existing Redis client.
func NewRedisPublisher(client *redis.Client, logger *zap.SugaredLogger) *RedisPublisher {
	return &RedisPublisher{client: client, logger: logger}
}

// Connect opens a Redis client and verifies the connection.
func Connect(ctx context.Context, addr, password string, db int, logger *zap.SugaredLogger) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return NewRedisPublisher(client, logger), nil
}

// Publish appends the entry to the activity stream.
func (p *RedisPublisher) Publish(ctx context.Context, entry *core.ActivityEntry) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: Stream,
		Values: map[string]any{
			"id":         entry.ID,
			"case_id":    entry.CaseID,
			"user_id":    entry.UserID,
			"message":    entry.Message,
			"created_at": entry.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}).Err()
	if err != nil {
		metrics.ActivityPublishFailures.Inc()
		p.logger.Warnw("Failed to publish activity entry",
			"case_id", entry.CaseID, "entry_id", entry.ID, "error", err)
	}
}

// Close closes the underlying Redis client.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
