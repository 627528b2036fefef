// Package history records successful sends so re-runs can skip recipients
// that were already mailed.
package history

import (
	"context"
	"errors"
)

// ErrInvalidEntry is returned for history lines that cannot be parsed.
var ErrInvalidEntry = errors.New("invalid history entry")

// Store is an append-only send history.
type Store interface {
	// LoadSentAddresses returns every primary address ever sent to,
	// normalized with NormalizeAddress.
	LoadSentAddresses(ctx context.Context) (map[string]struct{}, error)
	// Append durably records one send.
	Append(ctx context.Context, e Entry) error
}
