package vectordb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS chunk_vectors (
	document_id TEXT NOT NULL,
	chunk_id    TEXT NOT NULL,
	position    INTEGER NOT NULL,
	embedding   BLOB NOT NULL,
	created_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (document_id, chunk_id)
);
CREATE INDEX IF NOT EXISTS idx_chunk_vectors_document ON chunk_vectors(document_id, position);
`

// SQLiteIndexBuilder persists chunk vectors in SQLite, one row per chunk
// keyed by document id. Ranking happens in Go.
type SQLiteIndexBuilder struct {
	db       *sqlx.DB
	embedder ports.EmbeddingService
	cfg      builderConfig
}

// NewSQLiteIndexBuilder opens (or creates) the database at dir/vectors.db.
func NewSQLiteIndexBuilder(dir string, embedder ports.EmbeddingService, opts ...Option) (*SQLiteIndexBuilder, error) {
	if dir == "" {
		dir = "./data"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sqlx.Connect("sqlite3", filepath.Join(dir, "vectors.db")+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return &SQLiteIndexBuilder{db: db, embedder: embedder, cfg: newBuilderConfig(opts)}, nil
}

// Close closes the database connection.
func (b *SQLiteIndexBuilder) Close() error {
	return b.db.Close()
}

// Count returns the number of stored vectors for documentID.
func (b *SQLiteIndexBuilder) Count(ctx context.Context, documentID string) (int, error) {
	var n int
	err := b.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM chunk_vectors WHERE document_id = ?`, documentID)
	return n, err
}

// Build embeds chunks and stores their vectors under documentID, replacing
// any earlier rows for the same document.
func (b *SQLiteIndexBuilder) Build(ctx context.Context, documentID string, chunks []entities.Chunk) (ports.VectorIndex, error) {
	if len(chunks) == 0 {
		return nil, entities.ErrEmptyInput
	}
	vectors, err := embedChunks(ctx, b.embedder, chunks, b.cfg.normalize)
	if err != nil {
		return nil, err
	}

	tx, err := b.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunk_vectors WHERE document_id = ?`, documentID); err != nil {
		return nil, fmt.Errorf("clearing document: %w", err)
	}
	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO chunk_vectors (document_id, chunk_id, position, embedding)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for i, c := range chunks {
		blob, err := json.Marshal(vectors[i])
		if err != nil {
			return nil, fmt.Errorf("encoding embedding: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, documentID, c.ID, i, blob); err != nil {
			return nil, fmt.Errorf("inserting chunk %s: %w", c.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing vectors: %w", err)
	}

	return &sqliteIndex{db: b.db, documentID: documentID, embedder: b.embedder, cfg: b.cfg}, nil
}

type vectorRow struct {
	ChunkID   string `db:"chunk_id"`
	Embedding []byte `db:"embedding"`
}

type sqliteIndex struct {
	db         *sqlx.DB
	documentID string
	embedder   ports.EmbeddingService
	cfg        builderConfig

	mu       sync.RWMutex
	released bool
}

func (s *sqliteIndex) Search(ctx context.Context, query string, k int) ([]ports.Hit, error) {
	s.mu.RLock()
	released := s.released
	s.mu.RUnlock()
	if released || k <= 0 {
		return []ports.Hit{}, nil
	}

	q, err := embedQuery(ctx, s.embedder, query, s.cfg.normalize)
	if err != nil {
		return nil, err
	}

	var rows []vectorRow
	err = s.db.SelectContext(ctx, &rows, `
		SELECT chunk_id, embedding FROM chunk_vectors
		WHERE document_id = ?
		ORDER BY position
	`, s.documentID)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}

	ids := make([]string, 0, len(rows))
	vectors := make([][]float32, 0, len(rows))
	for _, r := range rows {
		var v []float32
		if err := json.Unmarshal(r.Embedding, &v); err != nil {
			return nil, fmt.Errorf("decoding embedding for chunk %s: %w", r.ChunkID, err)
		}
		ids = append(ids, r.ChunkID)
		vectors = append(vectors, v)
	}
	return nearest(q, ids, vectors, k)
}

// Release deletes the document's rows.
func (s *sqliteIndex) Release(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil
	}
	s.released = true
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunk_vectors WHERE document_id = ?`, s.documentID); err != nil {
		return fmt.Errorf("deleting vectors: %w", err)
	}
	return nil
}
