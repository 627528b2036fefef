package history

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore keeps the history as a UTF-8 text file, one entry per line.
// Each Append is a single write to a file opened with O_APPEND, so
// concurrent writers interleave whole lines.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore for path. The file is created on first
// append.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the history file path.
func (s *FileStore) Path() string {
	return s.path
}

// LoadSentAddresses implements Store. A missing file is an empty history;
// unparseable lines are ignored.
func (s *FileStore) LoadSentAddresses(_ context.Context) (map[string]struct{}, error) {
	sent := make(map[string]struct{})

	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return sent, nil
		}
		return nil, fmt.Errorf("failed to open history file: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if addr, ok := addressFromLine(sc.Text()); ok {
			sent[addr] = struct{}{}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}
	return sent, nil
}

// Append implements Store.
func (s *FileStore) Append(_ context.Context, e Entry) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open history file: %w", err)
	}

	if _, err := f.WriteString(e.Line() + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("failed to write history entry: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to flush history file: %w", err)
	}
	return f.Close()
}
