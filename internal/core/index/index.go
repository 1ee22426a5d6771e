package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jinford/kbchat/internal/core/kb"
)

var (
	// ErrInvalidArgument は検索パラメータが不正な場合のエラー
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrIndexUnavailable はベクトルストアが利用できない場合のエラー。
	// 呼び出し側は構造化データのみでの回答へ縮退する。
	ErrIndexUnavailable = errors.New("vector index unavailable")
)

// Embedder はテキストのEmbedding生成インターフェース
type Embedder interface {
	// Embed は単一テキストのEmbeddingを生成する
	Embed(ctx context.Context, text string) ([]float32, error)

	// BatchEmbed はバッチでEmbeddingを生成する（OpenAI APIは最大100件）
	BatchEmbed(ctx context.Context, texts []string) ([][]float32, error)

	// MaxBatchSize はバッチ処理の最大サイズを返す
	MaxBatchSize() int
}

// Entry はストアに永続化されるチャンクとベクトルの組を表す
type Entry struct {
	Chunk  kb.Chunk
	Vector []float32
}

// Match はベクトル検索の1件分の結果を表す
type Match struct {
	ChunkID  string
	SourceID string
	Ordinal  int
	Content  string
	Score    float64 // コサイン類似度（降順）
}

// Store はチャンクベクトルの永続化層インターフェース。
// Search の結果はスコア降順、同スコア時は挿入順で安定していること。
type Store interface {
	Contains(ctx context.Context, chunkID string) (bool, error)
	Add(ctx context.Context, entry Entry) error
	Search(ctx context.Context, vector []float32, k int) ([]Match, error)
	Clear(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}

// Service はEmbeddingインデックスのビジネスロジックを提供する。
// store が nil の場合は全操作が ErrIndexUnavailable を返す（構造化のみへの縮退用）。
type Service struct {
	store    Store
	embedder Embedder
	logger   *slog.Logger
}

// ServiceOption は Service 構築時のオプション
type ServiceOption func(*Service)

// WithLogger は Service にロガーを設定する
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService は新しい Service を作成する
func NewService(store Store, embedder Embedder, opts ...ServiceOption) *Service {
	svc := &Service{
		store:    store,
		embedder: embedder,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Add は単一チャンクをインデックスへ追加する。
// 既に同一IDが登録済みの場合はEmbedding生成をスキップして何もしない（冪等）。
func (s *Service) Add(ctx context.Context, chunk kb.Chunk) error {
	if s.store == nil {
		return ErrIndexUnavailable
	}

	exists, err := s.store.Contains(ctx, chunk.ID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	if exists {
		return nil
	}

	vector, err := s.embedder.Embed(ctx, chunk.Text)
	if err != nil {
		return fmt.Errorf("failed to embed chunk %s: %w", chunk.ID, err)
	}

	if err := s.store.Add(ctx, Entry{Chunk: chunk, Vector: vector}); err != nil {
		return fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	return nil
}

// AddAll は複数チャンクをバッチでインデックスへ追加する。
// 登録済みIDはバッチから除外されるため、再実行しても重複しない。
func (s *Service) AddAll(ctx context.Context, chunks []kb.Chunk) (int, error) {
	if s.store == nil {
		return 0, ErrIndexUnavailable
	}

	var pending []kb.Chunk
	for _, chunk := range chunks {
		exists, err := s.store.Contains(ctx, chunk.ID)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
		}
		if !exists {
			pending = append(pending, chunk)
		}
	}

	if len(pending) == 0 {
		return 0, nil
	}

	batchSize := s.embedder.MaxBatchSize()
	if batchSize <= 0 {
		batchSize = 1
	}

	added := 0
	for start := 0; start < len(pending); start += batchSize {
		end := start + batchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Text
		}

		vectors, err := s.embedder.BatchEmbed(ctx, texts)
		if err != nil {
			return added, fmt.Errorf("failed to embed batch: %w", err)
		}
		if len(vectors) != len(batch) {
			return added, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(batch))
		}

		for i, chunk := range batch {
			if err := s.store.Add(ctx, Entry{Chunk: chunk, Vector: vectors[i]}); err != nil {
				return added, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
			}
			added++
		}
	}

	s.logger.Info("chunks indexed", "added", added, "skipped", len(chunks)-added)
	return added, nil
}

// Search はクエリ文字列で類似チャンクを上位k件検索する。
// 結果はスコア降順、同スコア時は挿入順。k が正でない場合は ErrInvalidArgument。
func (s *Service) Search(ctx context.Context, query string, k int) ([]Match, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", ErrInvalidArgument, k)
	}
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidArgument)
	}
	if s.store == nil {
		return nil, ErrIndexUnavailable
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	matches, err := s.store.Search(ctx, vector, k)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	return matches, nil
}

// Rebuild はインデックスを全消去してから chunks で再構築する
func (s *Service) Rebuild(ctx context.Context, chunks []kb.Chunk) (int, error) {
	if s.store == nil {
		return 0, ErrIndexUnavailable
	}

	if err := s.store.Clear(ctx); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	s.logger.Info("index cleared, repopulating", "chunks", len(chunks))
	return s.AddAll(ctx, chunks)
}

// Count は登録済みチャンク数を返す
func (s *Service) Count(ctx context.Context) (int, error) {
	if s.store == nil {
		return 0, ErrIndexUnavailable
	}
	count, err := s.store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	return count, nil
}
