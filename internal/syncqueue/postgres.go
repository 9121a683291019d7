package syncqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresJournal struct {
	pool *pgxpool.Pool
}

func NewPostgresJournal(ctx context.Context, dsn string) (*PostgresJournal, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is required")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	journal := &PostgresJournal{pool: pool}
	if err := journal.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return journal, nil
}

func (j *PostgresJournal) Close() {
	j.pool.Close()
}

func (j *PostgresJournal) Append(ctx context.Context, action Action) error {
	if strings.TrimSpace(action.ID) == "" {
		return errors.New("action id is required")
	}
	headerJSON, err := json.Marshal(action.Header)
	if err != nil {
		return fmt.Errorf("marshal action header: %w", err)
	}

	_, err = j.pool.Exec(ctx, `
INSERT INTO sync_actions (id, tag, method, target, header, body, attempts, created_at)
VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8)
`, action.ID, action.Tag, action.Method, action.Target, headerJSON, action.Body, action.Attempts, action.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert sync action: %w", err)
	}
	return nil
}

func (j *PostgresJournal) Pending(ctx context.Context, tag string) ([]Action, error) {
	rows, err := j.pool.Query(ctx, `
SELECT `+actionColumns+`
FROM sync_actions
WHERE tag = $1
ORDER BY created_at ASC, id ASC
`, tag)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Action, 0)
	for rows.Next() {
		item, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (j *PostgresJournal) MarkAttempt(ctx context.Context, id string) error {
	tag, err := j.pool.Exec(ctx, `UPDATE sync_actions SET attempts = attempts + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark sync attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrActionNotFound
	}
	return nil
}

func (j *PostgresJournal) Complete(ctx context.Context, id string) error {
	tag, err := j.pool.Exec(ctx, `DELETE FROM sync_actions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("complete sync action: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrActionNotFound
	}
	return nil
}

func (j *PostgresJournal) initSchema(ctx context.Context) error {
	_, err := j.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS sync_actions (
	id TEXT PRIMARY KEY,
	tag TEXT NOT NULL,
	method TEXT NOT NULL,
	target TEXT NOT NULL,
	header JSONB NOT NULL DEFAULT '{}'::jsonb,
	body BYTEA NULL,
	attempts INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sync_actions_tag_created
ON sync_actions (tag, created_at);
`)
	if err != nil {
		return fmt.Errorf("initialize sync actions schema: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

const actionColumns = `
id,
tag,
method,
target,
header,
body,
attempts,
created_at`

func scanAction(row rowScanner) (Action, error) {
	var item Action
	var headerJSON []byte
	var createdAt time.Time

	err := row.Scan(
		&item.ID,
		&item.Tag,
		&item.Method,
		&item.Target,
		&headerJSON,
		&item.Body,
		&item.Attempts,
		&createdAt,
	)
	if err != nil {
		return Action{}, err
	}

	if len(headerJSON) > 0 {
		if err := json.Unmarshal(headerJSON, &item.Header); err != nil {
			return Action{}, fmt.Errorf("decode action header: %w", err)
		}
	}
	item.CreatedAt = createdAt.UTC()
	return item, nil
}
