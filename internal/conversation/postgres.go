package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campuskit/advisor/internal/reliability"
)

// PostgresStore persists conversation turns in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS turns (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			role TEXT NOT NULL,
			text TEXT NOT NULL,
			citations JSONB NOT NULL DEFAULT '[]',
			low_confidence BOOLEAN NOT NULL DEFAULT FALSE,
			block_reason TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_turns_user_created ON turns (user_id, created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

// AppendTurns stores the given turns in one transaction.
func (s *PostgresStore) AppendTurns(ctx context.Context, userID string, turns []Turn) error {
	if len(turns) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return reliability.StoreWrite(fmt.Errorf("begin tx: %w", err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()
	for _, turn := range turns {
		if turn.ID == "" {
			turn.ID = uuid.NewString()
		}
		if turn.UserID == "" {
			turn.UserID = userID
		}
		if turn.CreatedAt.IsZero() {
			turn.CreatedAt = now
		}
		citations, err := json.Marshal(turn.Citations)
		if err != nil {
			return reliability.StoreWrite(fmt.Errorf("marshal citations: %w", err))
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO turns (id, user_id, role, text, citations, low_confidence, block_reason, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			turn.ID,
			turn.UserID,
			string(turn.Role),
			turn.Text,
			citations,
			turn.LowConfidence,
			turn.BlockReason,
			turn.CreatedAt,
		)
		if err != nil {
			return reliability.StoreWrite(fmt.Errorf("insert turn: %w", err))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return reliability.StoreWrite(fmt.Errorf("commit turns: %w", err))
	}
	return nil
}

func (s *PostgresStore) Recent(ctx context.Context, userID string, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, role, text, citations, low_confidence, block_reason, created_at
		 FROM turns WHERE user_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2`,
		userID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent turns: %w", err)
	}
	defer rows.Close()

	items := make([]Turn, 0, limit)
	for rows.Next() {
		var (
			t         Turn
			role      string
			citations []byte
		)
		if err := rows.Scan(&t.ID, &t.UserID, &role, &t.Text, &citations, &t.LowConfidence, &t.BlockReason, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn row: %w", err)
		}
		t.Role = Role(role)
		if len(citations) > 0 {
			if err := json.Unmarshal(citations, &t.Citations); err != nil {
				return nil, fmt.Errorf("unmarshal citations: %w", err)
			}
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turn rows: %w", err)
	}

	// Rows come back newest-first; callers expect chronological order.
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}

	return items, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
