package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smilemakc/convoflow/pkg/models"
)

// contextKeyPrefix namespaces conversation context snapshots in Redis.
const contextKeyPrefix = "convoflow:ctx:"

// ContextStore persists conversation Context snapshots keyed by
// conversation_id. Snapshots expire after the TTL supplied by the caller; it
// is not derived from a graph's session timeout.
type ContextStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewContextStore creates a context store. ttl bounds how long an idle
// snapshot survives; zero means no expiry.
func NewContextStore(client *redis.Client, ttl time.Duration) *ContextStore {
	return &ContextStore{client: client, ttl: ttl}
}

func contextKey(conversationID string) string {
	return contextKeyPrefix + conversationID
}

// Save serializes and writes the context snapshot.
func (s *ContextStore) Save(ctx context.Context, cctx *models.Context) error {
	data, err := json.Marshal(cctx)
	if err != nil {
		return fmt.Errorf("failed to serialize context %s: %w", cctx.ConversationID, err)
	}
	if err := s.client.Set(ctx, contextKey(cctx.ConversationID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save context %s: %w", cctx.ConversationID, err)
	}
	return nil
}

// Load reads and deserializes a context snapshot. Returns
// models.ErrContextNotFound when no snapshot exists.
func (s *ContextStore) Load(ctx context.Context, conversationID string) (*models.Context, error) {
	data, err := s.client.Get(ctx, contextKey(conversationID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, models.ErrContextNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load context %s: %w", conversationID, err)
	}
	var cctx models.Context
	if err := json.Unmarshal(data, &cctx); err != nil {
		return nil, fmt.Errorf("failed to deserialize context %s: %w", conversationID, err)
	}
	return &cctx, nil
}

// Delete removes a context snapshot.
func (s *ContextStore) Delete(ctx context.Context, conversationID string) error {
	return s.client.Del(ctx, contextKey(conversationID)).Err()
}

// ActiveConversationIDs scans the store for every persisted conversation ID,
// used by the timeout sweeper.
func (s *ContextStore) ActiveConversationIDs(ctx context.Context) ([]string, error) {
	var ids []string
	iter := s.client.Scan(ctx, 0, contextKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, iter.Val()[len(contextKeyPrefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan contexts: %w", err)
	}
	return ids, nil
}
