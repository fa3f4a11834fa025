package chunk

import (
	"fmt"
	"strconv"
)

// Reserved metadata keys. They are always present on a stored chunk.
const (
	KeyDocumentID  = "document_id"
	KeyChunkIndex  = "chunk_index"
	KeyTotalChunks = "total_chunks"
)

// Metadata is the typed provenance of a chunk. Attributes carries
// source-specific fields copied from the parent document.
type Metadata struct {
	DocumentID  string
	ChunkIndex  int
	TotalChunks int
	Attributes  map[string]string
}

// Lookup returns the value for key, checking reserved fields before attributes.
func (m Metadata) Lookup(key string) (string, bool) {
	switch key {
	case KeyDocumentID:
		return m.DocumentID, m.DocumentID != ""
	case KeyChunkIndex:
		return strconv.Itoa(m.ChunkIndex), true
	case KeyTotalChunks:
		return strconv.Itoa(m.TotalChunks), true
	}
	v, ok := m.Attributes[key]
	return v, ok
}

// Flatten merges reserved fields and attributes into one map.
// Reserved fields win over attributes with the same key.
func (m Metadata) Flatten() map[string]string {
	out := make(map[string]string, len(m.Attributes)+3)
	for k, v := range m.Attributes {
		out[k] = v
	}
	out[KeyDocumentID] = m.DocumentID
	out[KeyChunkIndex] = strconv.Itoa(m.ChunkIndex)
	out[KeyTotalChunks] = strconv.Itoa(m.TotalChunks)
	return out
}

// ParseMetadata is the inverse of Flatten.
func ParseMetadata(flat map[string]string) (Metadata, error) {
	idx, err := strconv.Atoi(flat[KeyChunkIndex])
	if err != nil {
		return Metadata{}, fmt.Errorf("parse %s: %w", KeyChunkIndex, err)
	}
	total, err := strconv.Atoi(flat[KeyTotalChunks])
	if err != nil {
		return Metadata{}, fmt.Errorf("parse %s: %w", KeyTotalChunks, err)
	}

	attrs := make(map[string]string, len(flat))
	for k, v := range flat {
		switch k {
		case KeyDocumentID, KeyChunkIndex, KeyTotalChunks:
			continue
		}
		attrs[k] = v
	}

	return Metadata{
		DocumentID:  flat[KeyDocumentID],
		ChunkIndex:  idx,
		TotalChunks: total,
		Attributes:  attrs,
	}, nil
}

// Chunk is a contiguous piece of a document's text (immutable value object).
type Chunk struct {
	id   string
	text string
	meta Metadata
}

// ID builds the storage identity of a chunk: {document_id}_{chunk_index}.
func ID(documentID string, index int) string {
	return documentID + "_" + strconv.Itoa(index)
}

// New validates and creates a Chunk. The attributes map is copied.
func New(documentID string, index, total int, text string, attrs map[string]string) (Chunk, error) {
	if documentID == "" {
		return Chunk{}, fmt.Errorf("document ID is required")
	}
	if total <= 0 {
		return Chunk{}, fmt.Errorf("total chunks must be positive, got %d", total)
	}
	if index < 0 || index >= total {
		return Chunk{}, fmt.Errorf("chunk index %d out of range [0, %d)", index, total)
	}

	return Chunk{
		id:   ID(documentID, index),
		text: text,
		meta: Metadata{
			DocumentID:  documentID,
			ChunkIndex:  index,
			TotalChunks: total,
			Attributes:  cloneAttrs(attrs),
		},
	}, nil
}

// Reconstruct creates a Chunk without validation (storage hydration).
func Reconstruct(id, text string, meta Metadata) Chunk {
	return Chunk{id: id, text: text, meta: meta}
}

// ID returns the chunk identifier.
func (c *Chunk) ID() string { return c.id }

// Text returns the chunk text.
func (c *Chunk) Text() string { return c.text }

// Metadata returns the chunk metadata.
func (c *Chunk) Metadata() Metadata { return c.meta }

func cloneAttrs(m map[string]string) map[string]string {
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
