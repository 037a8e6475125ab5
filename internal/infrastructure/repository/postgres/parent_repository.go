package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// ParentRepository hydrates parent chunk texts for retrieval results.
// Child chunks live in the vector index; parents are the wide context
// windows stored here, keyed by parent_id.
type ParentRepository struct {
	db *sql.DB
}

func NewParentRepository(db *sql.DB) *ParentRepository {
	return &ParentRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *ParentRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent api startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026021002)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS parent_chunks (
	parent_id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	text TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_parent_chunks_document_id ON parent_chunks(document_id);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// GetParentTexts fetches texts for a batch of parent ids in one round
// trip. Missing ids are simply absent from the returned map.
func (r *ParentRepository) GetParentTexts(ctx context.Context, parentIDs []string) (map[string]string, error) {
	if len(parentIDs) == 0 {
		return map[string]string{}, nil
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT parent_id, text
FROM parent_chunks
WHERE parent_id = ANY($1)
`, parentIDs)
	if err != nil {
		return nil, fmt.Errorf("query parent chunks: %w", err)
	}
	defer rows.Close()

	texts := make(map[string]string, len(parentIDs))
	for rows.Next() {
		var parentID, text string
		if err := rows.Scan(&parentID, &text); err != nil {
			return nil, fmt.Errorf("scan parent chunk: %w", err)
		}
		texts[parentID] = text
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate parent chunks: %w", err)
	}
	return texts, nil
}

func (r *ParentRepository) UpsertParent(ctx context.Context, parentID, documentID, text string) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO parent_chunks (parent_id, document_id, text)
VALUES ($1, $2, $3)
ON CONFLICT (parent_id) DO UPDATE SET document_id = EXCLUDED.document_id, text = EXCLUDED.text
`, parentID, documentID, text)
	if err != nil {
		return fmt.Errorf("upsert parent chunk: %w", err)
	}
	return nil
}
