package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/jinford/kbchat/internal/core/index"
)

// VectorStore は core/index.Store を実装する pgvector ベースの永続ストア。
// コサイン距離演算子 <=> で検索し、スコアは 1 - 距離 で正規化する。
type VectorStore struct {
	pool      *pgxpool.Pool
	dimension int
}

// NewVectorStore は新しい VectorStore を返す。
func NewVectorStore(pool *pgxpool.Pool, dimension int) *VectorStore {
	return &VectorStore{pool: pool, dimension: dimension}
}

var _ index.Store = (*VectorStore)(nil)

// EnsureSchema は拡張とテーブルを冪等に作成する。
// seq は挿入順の同点解決に使う。
func (s *VectorStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS kb_vectors (
			chunk_id  TEXT PRIMARY KEY,
			source_id TEXT NOT NULL,
			ordinal   INTEGER NOT NULL,
			content   TEXT NOT NULL,
			seq       BIGSERIAL,
			embedding VECTOR(%d) NOT NULL
		)`, s.dimension)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create kb_vectors table: %w", err)
	}

	if _, err := s.pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS kb_vectors_source_idx ON kb_vectors (source_id)`); err != nil {
		return fmt.Errorf("failed to create source index: %w", err)
	}

	return nil
}

func (s *VectorStore) Contains(ctx context.Context, chunkID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM kb_vectors WHERE chunk_id = $1)`, chunkID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check chunk existence: %w", err)
	}
	return exists, nil
}

func (s *VectorStore) Add(ctx context.Context, entry index.Entry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO kb_vectors (chunk_id, source_id, ordinal, content, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (chunk_id) DO NOTHING`,
		entry.Chunk.ID,
		entry.Chunk.SourceID,
		entry.Chunk.Ordinal,
		entry.Chunk.Text,
		pgvector.NewVector(entry.Vector),
	)
	if err != nil {
		return fmt.Errorf("failed to insert chunk %s: %w", entry.Chunk.ID, err)
	}
	return nil
}

func (s *VectorStore) Search(ctx context.Context, vector []float32, k int) ([]index.Match, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT chunk_id, source_id, ordinal, content,
		       1 - (embedding <=> $1) AS score
		FROM kb_vectors
		ORDER BY score DESC, seq ASC
		LIMIT $2`,
		pgvector.NewVector(vector), k,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search vectors: %w", err)
	}
	defer rows.Close()

	var matches []index.Match
	for rows.Next() {
		var m index.Match
		if err := rows.Scan(&m.ChunkID, &m.SourceID, &m.Ordinal, &m.Content, &m.Score); err != nil {
			return nil, fmt.Errorf("failed to scan search row: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate search rows: %w", err)
	}
	return matches, nil
}

func (s *VectorStore) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `TRUNCATE kb_vectors`); err != nil {
		return fmt.Errorf("failed to clear kb_vectors: %w", err)
	}
	return nil
}

func (s *VectorStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM kb_vectors`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count kb_vectors: %w", err)
	}
	return count, nil
}
