package index

import (
	"context"
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/kbchat/internal/core/kb"
)

// stubEmbedder はテキストごとに固定ベクトルを返すテスト用Embedder
type stubEmbedder struct {
	vectors map[string][]float32
	calls   int
}

func (e *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls++
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

func (e *stubEmbedder) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *stubEmbedder) MaxBatchSize() int { return 2 }

// memStore は総当たりコサイン類似度で検索するインメモリStore。
// スコア降順・同スコアは挿入順という Store の契約を満たす。
type memStore struct {
	entries []Entry
}

func (s *memStore) Contains(ctx context.Context, chunkID string) (bool, error) {
	for _, e := range s.entries {
		if e.Chunk.ID == chunkID {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) Add(ctx context.Context, entry Entry) error {
	s.entries = append(s.entries, entry)
	return nil
}

func (s *memStore) Search(ctx context.Context, vector []float32, k int) ([]Match, error) {
	matches := make([]Match, 0, len(s.entries))
	for _, e := range s.entries {
		matches = append(matches, Match{
			ChunkID:  e.Chunk.ID,
			SourceID: e.Chunk.SourceID,
			Ordinal:  e.Chunk.Ordinal,
			Content:  e.Chunk.Text,
			Score:    cosine(e.Vector, vector),
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if k < len(matches) {
		matches = matches[:k]
	}
	return matches, nil
}

func (s *memStore) Clear(ctx context.Context) error {
	s.entries = nil
	return nil
}

func (s *memStore) Count(ctx context.Context) (int, error) {
	return len(s.entries), nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func chunk(id, text string) kb.Chunk {
	return kb.Chunk{ID: id, SourceID: "doc.md", Text: text}
}

func TestService_AddIsIdempotent(t *testing.T) {
	store := &memStore{}
	embedder := &stubEmbedder{}
	svc := NewService(store, embedder)

	ctx := context.Background()
	c := chunk("c1", "vacation policy")

	require.NoError(t, svc.Add(ctx, c))
	require.NoError(t, svc.Add(ctx, c))

	count, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	// 2回目はEmbedding生成そのものがスキップされる
	assert.Equal(t, 1, embedder.calls)
}

func TestService_AddAllSkipsIndexedChunks(t *testing.T) {
	store := &memStore{}
	svc := NewService(store, &stubEmbedder{})

	ctx := context.Background()
	chunks := []kb.Chunk{chunk("a", "one"), chunk("b", "two"), chunk("c", "three")}

	added, err := svc.AddAll(ctx, chunks)
	require.NoError(t, err)
	assert.Equal(t, 3, added)

	added, err = svc.AddAll(ctx, chunks)
	require.NoError(t, err)
	assert.Equal(t, 0, added)

	count, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestService_SearchValidatesK(t *testing.T) {
	svc := NewService(&memStore{}, &stubEmbedder{})

	for _, k := range []int{0, -1, -100} {
		_, err := svc.Search(context.Background(), "anything", k)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	}
}

func TestService_SearchOrdersByScoreWithStableTies(t *testing.T) {
	store := &memStore{}
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"close":    {1, 0, 0},
		"tie-a":    {0, 1, 0},
		"tie-b":    {0, 1, 0},
		"far":      {0, 0, 1},
		"the query": {0.9, 0.9, 0},
	}}
	svc := NewService(store, embedder)

	ctx := context.Background()
	for _, c := range []kb.Chunk{
		chunk("id-close", "close"),
		chunk("id-tie-a", "tie-a"),
		chunk("id-tie-b", "tie-b"),
		chunk("id-far", "far"),
	} {
		require.NoError(t, svc.Add(ctx, c))
	}

	for i := 0; i < 3; i++ {
		matches, err := svc.Search(ctx, "the query", 3)
		require.NoError(t, err)
		require.Len(t, matches, 3)

		assert.True(t, matches[0].Score >= matches[1].Score)
		assert.True(t, matches[1].Score >= matches[2].Score)
		// 同スコアのチャンクは挿入順で安定
		assert.Equal(t, "id-tie-a", matches[1].ChunkID)
		assert.Equal(t, "id-tie-b", matches[2].ChunkID)
	}
}

func TestService_SearchReturnsAtMostK(t *testing.T) {
	store := &memStore{}
	svc := NewService(store, &stubEmbedder{})

	ctx := context.Background()
	_, err := svc.AddAll(ctx, []kb.Chunk{chunk("a", "one"), chunk("b", "two")})
	require.NoError(t, err)

	matches, err := svc.Search(ctx, "one", 10)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestService_NilStoreReportsUnavailable(t *testing.T) {
	svc := NewService(nil, &stubEmbedder{})
	ctx := context.Background()

	_, err := svc.Search(ctx, "query", 4)
	assert.ErrorIs(t, err, ErrIndexUnavailable)

	err = svc.Add(ctx, chunk("a", "one"))
	assert.ErrorIs(t, err, ErrIndexUnavailable)

	_, err = svc.Count(ctx)
	assert.ErrorIs(t, err, ErrIndexUnavailable)
}

func TestService_RebuildClearsAndRepopulates(t *testing.T) {
	store := &memStore{}
	svc := NewService(store, &stubEmbedder{})

	ctx := context.Background()
	_, err := svc.AddAll(ctx, []kb.Chunk{chunk("old-1", "stale"), chunk("old-2", "stale too")})
	require.NoError(t, err)

	added, err := svc.Rebuild(ctx, []kb.Chunk{chunk("new-1", "fresh")})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	count, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
