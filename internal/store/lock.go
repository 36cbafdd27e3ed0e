package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smilemakc/convoflow/internal/infrastructure/logger"
)

const lockKeyPrefix = "convoflow:lock:"

// RedisLock enforces the single-flight-per-conversation rule across engine
// processes via SETNX. The TTL guards against a crashed holder wedging a
// conversation forever.
type RedisLock struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

// NewRedisLock creates a distributed conversation lock. ttl must exceed the
// longest step deadline the caller uses.
func NewRedisLock(client *redis.Client, ttl time.Duration, log *logger.Logger) *RedisLock {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	if log == nil {
		log = logger.Default()
	}
	return &RedisLock{client: client, ttl: ttl, log: log}
}

// TryAcquire implements engine.ConversationLock. A Redis failure counts as
// "busy": serialization cannot be guaranteed, so the caller gets
// CONVERSATION_BUSY and retries.
func (l *RedisLock) TryAcquire(conversationID string) bool {
	ok, err := l.client.SetNX(context.Background(), lockKeyPrefix+conversationID, "1", l.ttl).Result()
	if err != nil {
		l.log.Error("conversation lock acquire failed", "conversation_id", conversationID, "error", err)
		return false
	}
	return ok
}

// Release implements engine.ConversationLock.
func (l *RedisLock) Release(conversationID string) {
	if err := l.client.Del(context.Background(), lockKeyPrefix+conversationID).Err(); err != nil {
		l.log.Error("conversation lock release failed", "conversation_id", conversationID, "error", err)
	}
}
