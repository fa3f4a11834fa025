package chunk

import (
	"strings"

	"github.com/kailas-cloud/papershelf/internal/db"
)

// tagSeparator is the ASCII unit separator. The search module splits tag
// values on it, so it must not occur in titles, author lists or ids.
const tagSeparator = "\x1f"

// tagValue strips the separator so a stored value is always a single tag.
func tagValue(v string) string {
	return strings.ReplaceAll(v, tagSeparator, "")
}

// buildIndex creates the FT index definition for chunk hashes.
// Every tag is case sensitive so that filters are exact equality.
func buildIndex(name, prefix string, cfg Config) (*db.IndexDefinition, error) {
	b := db.NewIndex(name).Prefix(prefix)
	for _, tag := range cfg.TagFields {
		b = b.TagWithOpts(tag, tagSeparator, true)
	}

	m, ef := cfg.HNSWM, cfg.HNSWEFConstruct
	if m <= 0 {
		m = 16
	}
	if ef <= 0 {
		ef = 200
	}
	return b.VectorHNSW(fieldVector, "vector", cfg.Model.Dimension, m, ef).Build()
}
