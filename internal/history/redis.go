package history

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	redisLinesKey = "sent_history"
	redisSetKey   = "sent_addresses"
)

// RedisStore keeps history lines in a list and the normalized addresses in a
// set, both under a common key prefix.
type RedisStore struct {
	client redis.Cmdable
	prefix string
}

// NewRedisStore creates a RedisStore.
func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// LoadSentAddresses implements Store.
func (s *RedisStore) LoadSentAddresses(ctx context.Context) (map[string]struct{}, error) {
	members, err := s.client.SMembers(ctx, s.prefix+redisSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load sent addresses: %w", err)
	}
	sent := make(map[string]struct{}, len(members))
	for _, m := range members {
		sent[m] = struct{}{}
	}
	return sent, nil
}

// Append implements Store. The line and the address are written in one
// MULTI/EXEC transaction.
func (s *RedisStore) Append(ctx context.Context, e Entry) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, s.prefix+redisLinesKey, e.Line())
		if addr := NormalizeAddress(e.To); addr != "" {
			pipe.SAdd(ctx, s.prefix+redisSetKey, addr)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append sent history: %w", err)
	}
	return nil
}
