package history

import (
	"context"
	"database/sql"
	"fmt"
)

// Querier is the subset of *sql.DB the Postgres store needs.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// PostgresStore keeps the history in the sent_history table created by
// migrations/000001_create_sent_history.
type PostgresStore struct {
	db Querier
}

// NewPostgresStore creates a PostgresStore.
func NewPostgresStore(db Querier) *PostgresStore {
	return &PostgresStore{db: db}
}

// LoadSentAddresses implements Store.
func (s *PostgresStore) LoadSentAddresses(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT to_address_normalized FROM sent_history`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sent history: %w", err)
	}
	defer rows.Close()

	sent := make(map[string]struct{})
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, fmt.Errorf("failed to scan sent address: %w", err)
		}
		if addr != "" {
			sent[addr] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sent history: %w", err)
	}
	return sent, nil
}

// Append implements Store.
func (s *PostgresStore) Append(ctx context.Context, e Entry) error {
	query := `
		INSERT INTO sent_history (sent_at, dispatch_id, to_address, to_address_normalized,
		    cc, bcc, subject, preview, attachments)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		e.SentAt,
		e.DispatchID,
		e.To,
		NormalizeAddress(e.To),
		e.CC,
		e.BCC,
		e.Subject,
		Preview(e.Preview),
		e.Attachments,
	)
	if err != nil {
		return fmt.Errorf("failed to insert sent history: %w", err)
	}
	return nil
}
