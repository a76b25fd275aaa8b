package threadstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Timestep-AI/timestep-ai-sub004/internal/chatkit/thread"
	"github.com/Timestep-AI/timestep-ai-sub004/internal/logging"
)

// PostgresStore persists threads and items in Postgres. Item payloads are
// stored as JSONB keyed by item id, so repeated writes of the same id resolve
// to one row via upsert.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewPostgresStore connects to dsn and ensures the schema exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect thread store: %w", err)
	}
	s := &PostgresStore{
		pool:   pool,
		logger: logging.NewComponentLogger("ThreadPostgresStore"),
	}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS chat_threads (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL,
    status_type TEXT NOT NULL DEFAULT 'active',
    status_reason TEXT NOT NULL DEFAULT '',
    metadata JSONB
);`,
		`CREATE TABLE IF NOT EXISTS chat_thread_items (
    id TEXT PRIMARY KEY,
    thread_id TEXT NOT NULL REFERENCES chat_threads(id),
    item_type TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    seq BIGSERIAL,
    payload JSONB NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_chat_thread_items_thread ON chat_thread_items (thread_id, seq);`,
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure thread schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) CreateThread(ctx context.Context, th *thread.Thread) error {
	metadata, err := marshalMetadata(th.Metadata)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO chat_threads (id, title, created_at, status_type, status_reason, metadata)
VALUES ($1, $2, $3, $4, $5, $6::jsonb)
`, th.ID, th.Title, th.CreatedAt, string(th.Status.Type), th.Status.Reason, metadata)
	return err
}

func (s *PostgresStore) GetThread(ctx context.Context, threadID string) (*thread.Thread, error) {
	th, err := s.scanThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	items, _, err := s.ListItems(ctx, threadID, 0, "")
	if err != nil {
		return nil, err
	}
	th.Items = thread.ItemPage{Data: items}
	return th, nil
}

func (s *PostgresStore) scanThread(ctx context.Context, threadID string) (*thread.Thread, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, title, created_at, status_type, status_reason, metadata
FROM chat_threads WHERE id = $1
`, threadID)

	var th thread.Thread
	var statusType string
	var metadata []byte
	if err := row.Scan(&th.ID, &th.Title, &th.CreatedAt, &statusType, &th.Status.Reason, &metadata); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrThreadNotFound
		}
		return nil, fmt.Errorf("load thread %s: %w", threadID, err)
	}
	th.Status.Type = thread.StatusType(statusType)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &th.Metadata); err != nil {
			s.logger.Warn("Thread %s has unreadable metadata: %v", threadID, err)
		}
	}
	return &th, nil
}

func (s *PostgresStore) SaveThread(ctx context.Context, th *thread.Thread) error {
	metadata, err := marshalMetadata(th.Metadata)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO chat_threads (id, title, created_at, status_type, status_reason, metadata)
VALUES ($1, $2, $3, $4, $5, $6::jsonb)
ON CONFLICT (id) DO UPDATE SET
    title = EXCLUDED.title,
    status_type = EXCLUDED.status_type,
    status_reason = EXCLUDED.status_reason,
    metadata = EXCLUDED.metadata
`, th.ID, th.Title, th.CreatedAt, string(th.Status.Type), th.Status.Reason, metadata)
	return err
}

func (s *PostgresStore) ListThreads(ctx context.Context, limit, offset int) ([]*thread.Thread, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
SELECT id, title, created_at, status_type, status_reason, metadata
FROM chat_threads ORDER BY created_at DESC, id LIMIT $1 OFFSET $2
`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	defer rows.Close()

	threads := []*thread.Thread{}
	for rows.Next() {
		var th thread.Thread
		var statusType string
		var metadata []byte
		if err := rows.Scan(&th.ID, &th.Title, &th.CreatedAt, &statusType, &th.Status.Reason, &metadata); err != nil {
			return nil, err
		}
		th.Status.Type = thread.StatusType(statusType)
		if len(metadata) > 0 {
			_ = json.Unmarshal(metadata, &th.Metadata)
		}
		threads = append(threads, &th)
	}
	return threads, rows.Err()
}

func (s *PostgresStore) SaveItem(ctx context.Context, threadID string, item *thread.Item) error {
	return s.upsertItem(ctx, threadID, item, true)
}

func (s *PostgresStore) AddItem(ctx context.Context, threadID string, item *thread.Item) error {
	return s.upsertItem(ctx, threadID, item, false)
}

func (s *PostgresStore) upsertItem(ctx context.Context, threadID string, item *thread.Item, overwrite bool) error {
	if item == nil || item.ID == "" {
		return fmt.Errorf("item id is required")
	}
	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode item %s: %w", item.ID, err)
	}

	conflict := `ON CONFLICT (id) DO NOTHING`
	if overwrite {
		conflict = `ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload`
	}
	_, err = s.pool.Exec(ctx, fmt.Sprintf(`
INSERT INTO chat_thread_items (id, thread_id, item_type, created_at, payload)
VALUES ($1, $2, $3, $4, $5::jsonb)
%s
`, conflict), item.ID, threadID, string(item.Type), item.CreatedAt, payload)
	return err
}

func (s *PostgresStore) ListItems(ctx context.Context, threadID string, limit int, after string) ([]*thread.Item, bool, error) {
	query := `
SELECT payload FROM chat_thread_items
WHERE thread_id = $1
  AND ($2 = '' OR seq > (SELECT seq FROM chat_thread_items WHERE id = $2))
ORDER BY seq`
	args := []any{threadID, after}
	if limit > 0 {
		// Fetch one extra row to learn whether more remain.
		query += ` LIMIT $3`
		args = append(args, limit+1)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list items for %s: %w", threadID, err)
	}
	defer rows.Close()

	items := []*thread.Item{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, false, err
		}
		var it thread.Item
		if err := json.Unmarshal(payload, &it); err != nil {
			return nil, false, fmt.Errorf("decode item: %w", err)
		}
		items = append(items, &it)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}

	hasMore := false
	if limit > 0 && len(items) > limit {
		items = items[:limit]
		hasMore = true
	}
	return items, hasMore, nil
}

func marshalMetadata(metadata map[string]any) ([]byte, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("encode thread metadata: %w", err)
	}
	return data, nil
}
