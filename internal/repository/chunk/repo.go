package chunk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/kailas-cloud/papershelf/internal/db"
	redisdb "github.com/kailas-cloud/papershelf/internal/db/redis"
	"github.com/kailas-cloud/papershelf/internal/domain"
	domchunk "github.com/kailas-cloud/papershelf/internal/domain/chunk"
	"github.com/kailas-cloud/papershelf/internal/domain/search/filter"
	"github.com/kailas-cloud/papershelf/internal/domain/search/result"
)

const (
	fieldContent = "__content"
	fieldVector  = "__vector"
	fieldMeta    = "__meta"

	deleteBatch = 500
)

// store is the consumer interface for chunk storage (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, keys ...string) (int, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchList(ctx context.Context, index, query string, offset, limit int, fields []string) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// Config describes the index layout.
type Config struct {
	KeyPrefix string
	// TagFields are attribute keys indexed for equality filters,
	// on top of document_id, chunk_index and total_chunks.
	TagFields       []string
	Model           domain.ModelInfo
	HNSWM           int
	HNSWEFConstruct int
	Location        string
}

// Repo stores chunks as hashes under an FT vector index.
type Repo struct {
	store  store
	cfg    Config
	tagSet map[string]struct{}
}

// New creates a chunk repository.
func New(s store, cfg Config) (*Repo, error) {
	if err := cfg.Model.Validate(); err != nil {
		return nil, err
	}

	tags := []string{domchunk.KeyDocumentID, domchunk.KeyChunkIndex, domchunk.KeyTotalChunks}
	for _, f := range cfg.TagFields {
		if !db.IsValidIdentifier(f) || strings.HasPrefix(f, "__") {
			return nil, fmt.Errorf("%w: invalid tag field %q", domain.ErrInvalidConfiguration, f)
		}
		if !slices.Contains(tags, f) {
			tags = append(tags, f)
		}
	}
	cfg.TagFields = tags

	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		set[t] = struct{}{}
	}

	return &Repo{store: s, cfg: cfg, tagSet: set}, nil
}

// Name returns the FT index name.
func (r *Repo) Name() string { return r.cfg.KeyPrefix + "chunks:idx" }

// EnsureIndex creates the FT index on first start and records the embedding
// model it was built for. A later start with an incompatible model fails.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	raw, err := r.store.Get(ctx, r.modelKey())
	switch {
	case err == nil:
		var stored domain.ModelInfo
		if err := json.Unmarshal(raw, &stored); err != nil {
			return fmt.Errorf("%w: decode index model info: %w", domain.ErrStorage, err)
		}
		if !stored.CompatibleWith(r.cfg.Model) {
			return fmt.Errorf("%w: index %s was built with %s/%d, configured model is %s/%d",
				domain.ErrInvalidConfiguration, r.Name(),
				stored.Name, stored.Dimension, r.cfg.Model.Name, r.cfg.Model.Dimension)
		}
	case errors.Is(err, db.ErrKeyNotFound):
		data, err := json.Marshal(r.cfg.Model)
		if err != nil {
			return fmt.Errorf("encode model info: %w", err)
		}
		if err := r.store.Set(ctx, r.modelKey(), data); err != nil {
			return fmt.Errorf("%w: store model info: %w", domain.ErrStorage, err)
		}
	default:
		return fmt.Errorf("%w: read model info: %w", domain.ErrStorage, err)
	}

	exists, err := r.store.IndexExists(ctx, r.Name())
	if err != nil {
		return fmt.Errorf("%w: check index: %w", domain.ErrStorage, err)
	}
	if exists {
		return nil
	}

	def, err := buildIndex(r.Name(), r.keyPrefix(), r.cfg)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidConfiguration, err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("%w: create index: %w", domain.ErrStorage, err)
	}
	return nil
}

// Add writes all chunks with their vectors in one pipelined batch.
func (r *Repo) Add(ctx context.Context, chunks []domchunk.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("%w: %d chunks but %d vectors", domain.ErrValidation, len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}

	items := make([]db.HashSetItem, len(chunks))
	for i := range chunks {
		if len(vectors[i]) != r.cfg.Model.Dimension {
			return fmt.Errorf("%w: vector %d has dimension %d, index expects %d",
				domain.ErrValidation, i, len(vectors[i]), r.cfg.Model.Dimension)
		}
		fields, err := r.hashFields(&chunks[i], vectors[i])
		if err != nil {
			return err
		}
		items[i] = db.HashSetItem{Key: r.key(chunks[i].ID()), Fields: fields}
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("%w: write %d chunks: %w", domain.ErrStorage, len(items), err)
	}
	return nil
}

// Query returns up to k chunks nearest to vector among those matching f.
func (r *Repo) Query(ctx context.Context, vector []float32, k int, f filter.Expression) ([]result.Result, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", domain.ErrValidation, k)
	}
	if len(vector) != r.cfg.Model.Dimension {
		return nil, fmt.Errorf("%w: query vector has dimension %d, index expects %d",
			domain.ErrValidation, len(vector), r.cfg.Model.Dimension)
	}
	for _, c := range f.Must() {
		if _, ok := r.tagSet[c.Key()]; !ok {
			return nil, fmt.Errorf("%w: metadata key %q is not indexed for filtering", domain.ErrValidation, c.Key())
		}
	}

	res, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.Name(),
		Filters:      f,
		Vector:       vector,
		K:            k,
		ReturnFields: []string{fieldContent, fieldMeta, redisdb.ScoreField},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: knn search: %w", domain.ErrStorage, err)
	}
	if res == nil || len(res.Entries) == 0 {
		return []result.Result{}, nil
	}

	out := make([]result.Result, 0, len(res.Entries))
	for _, e := range res.Entries {
		meta, err := decodeMeta(e.Fields[fieldMeta])
		if err != nil {
			return nil, fmt.Errorf("%w: decode %s: %w", domain.ErrStorage, e.Key, err)
		}
		out = append(out, result.New(r.idFromKey(e.Key), e.Fields[fieldContent], meta, e.Score))
	}

	slices.SortStableFunc(out, func(a, b result.Result) int {
		switch {
		case a.Distance() < b.Distance():
			return -1
		case a.Distance() > b.Distance():
			return 1
		}
		return 0
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// Get returns a stored chunk. The bool is false when the chunk does not exist.
func (r *Repo) Get(ctx context.Context, id string) (result.Result, bool, error) {
	fields, err := r.store.HGetAll(ctx, r.key(id))
	if err != nil {
		return result.Result{}, false, fmt.Errorf("%w: get %s: %w", domain.ErrStorage, id, err)
	}
	if len(fields) == 0 {
		return result.Result{}, false, nil
	}

	meta, err := decodeMeta(fields[fieldMeta])
	if err != nil {
		return result.Result{}, false, fmt.Errorf("%w: decode %s: %w", domain.ErrStorage, id, err)
	}
	return result.New(id, fields[fieldContent], meta, 0), true, nil
}

// Delete removes a chunk. It reports whether the chunk existed.
func (r *Repo) Delete(ctx context.Context, id string) (bool, error) {
	n, err := r.store.Del(ctx, r.key(id))
	if err != nil {
		return false, fmt.Errorf("%w: delete %s: %w", domain.ErrStorage, id, err)
	}
	return n > 0, nil
}

// DeleteDocument removes every chunk of a document and returns how many were removed.
func (r *Repo) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	query := redisdb.TagFilter(domchunk.KeyDocumentID, documentID)
	total := 0
	for {
		res, err := r.store.SearchList(ctx, r.Name(), query, 0, deleteBatch, []string{domchunk.KeyDocumentID})
		if err != nil {
			return total, fmt.Errorf("%w: list chunks of %s: %w", domain.ErrStorage, documentID, err)
		}
		if res == nil || len(res.Entries) == 0 {
			return total, nil
		}

		keys := make([]string, len(res.Entries))
		for i, e := range res.Entries {
			keys[i] = e.Key
		}
		n, err := r.store.Del(ctx, keys...)
		if err != nil {
			return total, fmt.Errorf("%w: delete chunks of %s: %w", domain.ErrStorage, documentID, err)
		}
		total += n
		if n == 0 || len(res.Entries) < deleteBatch {
			return total, nil
		}
	}
}

// Stats reports the number of indexed chunks.
func (r *Repo) Stats(ctx context.Context) (domain.StorageStats, error) {
	count, err := r.store.SearchCount(ctx, r.Name(), "*")
	if err != nil {
		return domain.StorageStats{}, fmt.Errorf("%w: count: %w", domain.ErrStorage, err)
	}
	return domain.StorageStats{Count: count, Name: r.Name(), Location: r.cfg.Location}, nil
}

func (r *Repo) hashFields(c *domchunk.Chunk, vec []float32) (map[string]string, error) {
	meta := c.Metadata()
	flat := meta.Flatten()

	data, err := json.Marshal(flat)
	if err != nil {
		return nil, fmt.Errorf("encode metadata of %s: %w", c.ID(), err)
	}

	fields := map[string]string{
		fieldContent: c.Text(),
		fieldVector:  string(redisdb.VectorToBytes(vec)),
		fieldMeta:    string(data),
	}
	for _, tag := range r.cfg.TagFields {
		if v, ok := flat[tag]; ok && v != "" {
			fields[tag] = tagValue(v)
		}
	}
	return fields, nil
}

func decodeMeta(raw string) (domchunk.Metadata, error) {
	var flat map[string]string
	if err := json.Unmarshal([]byte(raw), &flat); err != nil {
		return domchunk.Metadata{}, err
	}
	return domchunk.ParseMetadata(flat)
}

func (r *Repo) keyPrefix() string { return r.cfg.KeyPrefix + "chunk:" }

func (r *Repo) key(id string) string { return r.keyPrefix() + id }

func (r *Repo) idFromKey(key string) string { return strings.TrimPrefix(key, r.keyPrefix()) }

func (r *Repo) modelKey() string { return r.cfg.KeyPrefix + "chunks:model" }
