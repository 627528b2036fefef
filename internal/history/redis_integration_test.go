//go:build integration

package history_test

import (
	"context"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/byanjiong/mailmerge/internal/history"
)

const testRedisURL = "redis://localhost:6379/0"

func newTestRedisClient(t *testing.T) *goredis.Client {
	t.Helper()

	url := os.Getenv("REDIS_URL")
	if url == "" {
		url = testRedisURL
	}
	opts, err := goredis.ParseURL(url)
	require.NoError(t, err)

	ctx := context.Background()
	client := goredis.NewClient(opts)
	require.NoError(t, client.Ping(ctx).Err(), "failed to connect to Redis")

	t.Cleanup(func() {
		_ = client.FlushDB(ctx).Err()
		_ = client.Close()
	})
	return client
}

func TestRedisStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	client := newTestRedisClient(t)
	s := history.NewRedisStore(client, "test-history:")

	sent, err := s.LoadSentAddresses(ctx)
	require.NoError(t, err)
	require.Empty(t, sent)

	require.NoError(t, s.Append(ctx, history.Entry{SentAt: time.Now(), DispatchID: "A", To: "Ann@Example.com", Attachments: 1}))
	require.NoError(t, s.Append(ctx, history.Entry{SentAt: time.Now(), DispatchID: "B", To: "bob@example.com"}))

	sent, err = s.LoadSentAddresses(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]struct{}{"ann@example.com": {}, "bob@example.com": {}}, sent)

	lines, err := client.LRange(ctx, "test-history:sent_history", 0, -1).Result()
	require.NoError(t, err)
	require.Len(t, lines, 2)
	e, err := history.ParseLine(lines[0])
	require.NoError(t, err)
	require.Equal(t, "A", e.DispatchID)
	require.Equal(t, 1, e.Attachments)
}
