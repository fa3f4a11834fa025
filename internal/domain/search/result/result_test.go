package result

import (
	"testing"

	"github.com/kailas-cloud/papershelf/internal/domain/chunk"
)

func TestNew(t *testing.T) {
	meta := chunk.Metadata{DocumentID: "doc", ChunkIndex: 0, TotalChunks: 1, Attributes: map[string]string{"lang": "go"}}

	r := New("doc_0", "hello", meta, 0.25)

	if r.ID() != "doc_0" {
		t.Errorf("ID() = %q", r.ID())
	}
	if r.Text() != "hello" {
		t.Errorf("Text() = %q", r.Text())
	}
	if r.Metadata().Attributes["lang"] != "go" {
		t.Errorf("Metadata() = %+v", r.Metadata())
	}
	if r.Distance() != 0.25 {
		t.Errorf("Distance() = %f", r.Distance())
	}
	if r.Similarity() != 0.75 {
		t.Errorf("Similarity() = %f", r.Similarity())
	}
}
