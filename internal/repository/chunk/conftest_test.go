package chunk

import (
	"context"
	"strconv"
	"testing"

	"github.com/kailas-cloud/papershelf/internal/db"
	"github.com/kailas-cloud/papershelf/internal/domain"
	domchunk "github.com/kailas-cloud/papershelf/internal/domain/chunk"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hsetMultiFn   func(ctx context.Context, items []db.HashSetItem) error
	hgetAllFn     func(ctx context.Context, key string) (map[string]string, error)
	delFn         func(ctx context.Context, keys ...string) (int, error)
	getFn         func(ctx context.Context, key string) ([]byte, error)
	setFn         func(ctx context.Context, key string, value []byte) error
	createIndexFn func(ctx context.Context, def *db.IndexDefinition) error
	indexExistsFn func(ctx context.Context, name string) (bool, error)
	searchKNNFn   func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	searchListFn  func(
		ctx context.Context, index, query string, offset, limit int, fields []string,
	) (*db.SearchResult, error)
	searchCountFn func(ctx context.Context, index, query string) (int, error)

	hsetMultiCalls int
}

func (m *mockStore) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	m.hsetMultiCalls++
	if m.hsetMultiFn != nil {
		return m.hsetMultiFn(ctx, items)
	}
	return nil
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hgetAllFn != nil {
		return m.hgetAllFn(ctx, key)
	}
	return map[string]string{}, nil
}

func (m *mockStore) Del(ctx context.Context, keys ...string) (int, error) {
	if m.delFn != nil {
		return m.delFn(ctx, keys...)
	}
	return 0, nil
}

func (m *mockStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockStore) Set(ctx context.Context, key string, value []byte) error {
	if m.setFn != nil {
		return m.setFn(ctx, key, value)
	}
	return nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return false, nil
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchList(
	ctx context.Context, index, query string, offset, limit int, fields []string,
) (*db.SearchResult, error) {
	if m.searchListFn != nil {
		return m.searchListFn(ctx, index, query, offset, limit, fields)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchCount(ctx context.Context, index, query string) (int, error) {
	if m.searchCountFn != nil {
		return m.searchCountFn(ctx, index, query)
	}
	return 0, nil
}

const testDim = 3

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	repo, err := New(ms, Config{
		KeyPrefix: "ps:",
		TagFields: []string{"category"},
		Model:     domain.ModelInfo{Name: "test-model", Dimension: testDim, MaxSeqLength: 128},
		Location:  "localhost:6379",
	})
	if err != nil {
		t.Fatalf("new repo: %v", err)
	}
	return repo, ms
}

func testChunk(t *testing.T, doc string, idx, total int, attrs map[string]string) domchunk.Chunk {
	t.Helper()
	c, err := domchunk.New(doc, idx, total, "text of "+domchunk.ID(doc, idx), attrs)
	if err != nil {
		t.Fatalf("new chunk: %v", err)
	}
	return c
}

func metaJSON(doc string, idx, total int) string {
	return `{"document_id":"` + doc + `","chunk_index":"` + strconv.Itoa(idx) + `","total_chunks":"` + strconv.Itoa(total) + `"}`
}
