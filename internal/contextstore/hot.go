package contextstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"iris.app/engage/internal/model"
)

// ErrMiss is returned when a conversation has no hot-tier entry.
var ErrMiss = errors.New("session not cached")

// SessionCache is the hot tier: low-latency session state with a sliding
// TTL. Reads are lock-free; consistency comes from the orchestrator's
// per-conversation sequencing, not from the cache.
type SessionCache interface {
	Get(ctx context.Context, conversationID string) (*model.ConversationState, error)
	Set(ctx context.Context, state *model.ConversationState, ttl time.Duration) error
	Touch(ctx context.Context, conversationID string, ttl time.Duration) error
	Invalidate(ctx context.Context, conversationID string) error

	// InvalidateUser drops every cached session belonging to the user.
	InvalidateUser(ctx context.Context, userID string) error
}

type redisSessionCache struct {
	client *redis.Client
}

// NewRedisSessionCache creates the Redis-backed hot tier. Sessions are
// stored as JSON blobs under session:{conversation_id}; a per-user set
// under user_sessions:{user_id} tracks which sessions hold a copy of the
// user's profile, so a warm-tier profile write can drop them all.
func NewRedisSessionCache(client *redis.Client) SessionCache {
	return &redisSessionCache{client: client}
}

func sessionKey(conversationID string) string {
	return "session:" + conversationID
}

func userSessionsKey(userID string) string {
	return "user_sessions:" + userID
}

func (c *redisSessionCache) Get(ctx context.Context, conversationID string) (*model.ConversationState, error) {
	raw, err := c.client.Get(ctx, sessionKey(conversationID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("reading session %s: %w", conversationID, err)
	}

	var state model.ConversationState
	if err := json.Unmarshal(raw, &state); err != nil {
		// A corrupt entry is treated as a miss so the caller rebuilds it.
		return nil, ErrMiss
	}
	return &state, nil
}

func (c *redisSessionCache) Set(ctx context.Context, state *model.ConversationState, ttl time.Duration) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding session %s: %w", state.ConversationID, err)
	}

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, sessionKey(state.ConversationID), raw, ttl)
	pipe.SAdd(ctx, userSessionsKey(state.UserID), state.ConversationID)
	pipe.Expire(ctx, userSessionsKey(state.UserID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("writing session %s: %w", state.ConversationID, err)
	}
	return nil
}

func (c *redisSessionCache) Touch(ctx context.Context, conversationID string, ttl time.Duration) error {
	if err := c.client.Expire(ctx, sessionKey(conversationID), ttl).Err(); err != nil {
		return fmt.Errorf("refreshing ttl for session %s: %w", conversationID, err)
	}
	return nil
}

func (c *redisSessionCache) Invalidate(ctx context.Context, conversationID string) error {
	if err := c.client.Del(ctx, sessionKey(conversationID)).Err(); err != nil {
		return fmt.Errorf("invalidating session %s: %w", conversationID, err)
	}
	return nil
}

func (c *redisSessionCache) InvalidateUser(ctx context.Context, userID string) error {
	conversationIDs, err := c.client.SMembers(ctx, userSessionsKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("listing sessions for user %s: %w", userID, err)
	}

	keys := make([]string, 0, len(conversationIDs)+1)
	for _, id := range conversationIDs {
		keys = append(keys, sessionKey(id))
	}
	keys = append(keys, userSessionsKey(userID))

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidating sessions for user %s: %w", userID, err)
	}
	return nil
}
