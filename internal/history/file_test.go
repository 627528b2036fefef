package history

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFileStore_MissingFileIsEmpty(t *testing.T) {
	t.Parallel()

	s := NewFileStore(filepath.Join(t.TempDir(), "none.log"))
	sent, err := s.LoadSentAddresses(context.Background())
	require.NoError(t, err)
	require.Empty(t, sent)
}

func TestFileStore_RoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "nested", "dir", "sent_history.log")
	s := NewFileStore(path)

	require.NoError(t, s.Append(ctx, Entry{SentAt: time.Now(), DispatchID: "A", To: " Ann@Example.com "}))
	require.NoError(t, s.Append(ctx, Entry{SentAt: time.Now(), DispatchID: "B", To: "bob@example.com", Subject: "multi\nline"}))

	sent, err := s.LoadSentAddresses(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]struct{}{
		"ann@example.com": {},
		"bob@example.com": {},
	}, sent)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, 2, strings.Count(string(data), "\n"))
}

func TestFileStore_MixedFormats(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sent_history.log")
	content := strings.Join([]string{
		"old@example.com",
		"",
		"# comment line",
		"2024-01-01 10:00:00 ¦ ID ¦ new@example.com ¦  ¦  ¦ Hi ¦ body ¦ 1",
		"garbage ¦",
		"\x00\x01",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	sent, err := NewFileStore(path).LoadSentAddresses(context.Background())
	require.NoError(t, err)
	require.Equal(t, map[string]struct{}{
		"old@example.com": {},
		"new@example.com": {},
	}, sent)
}

func TestFileStore_ConcurrentAppendsKeepLinesWhole(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "sent_history.log")
	s := NewFileStore(path)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.Append(ctx, Entry{DispatchID: "X", To: "user@example.com", Preview: strings.Repeat("x", 80)})
		}(i)
	}
	wg.Wait()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 20)
	for _, line := range lines {
		e, err := ParseLine(line)
		require.NoError(t, err)
		require.Equal(t, "user@example.com", e.To)
	}
}

func TestFileStore_AppendFailsOnDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	err := NewFileStore(dir).Append(context.Background(), Entry{To: "a@example.com"})
	require.Error(t, err)
}
