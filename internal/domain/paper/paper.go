// Package paper describes a source document as reported by the parser.
package paper

import (
	"path/filepath"
	"strconv"
	"strings"
)

// UnknownAuthor is used when the PDF carries no author.
const UnknownAuthor = "Unknown"

// Metadata is the document-level information extracted once at ingestion.
type Metadata struct {
	Title     string
	Author    string
	Subject   string
	Keywords  string
	Creator   string
	Producer  string
	Path      string
	PageCount int
}

// WithDefaults fills the title from the file name and the author with UnknownAuthor.
func (m Metadata) WithDefaults() Metadata {
	if strings.TrimSpace(m.Title) == "" {
		m.Title = filepath.Base(m.Path)
	}
	if strings.TrimSpace(m.Author) == "" {
		m.Author = UnknownAuthor
	}
	return m
}

// Attributes renders the metadata as chunk attributes. Empty values are omitted.
func (m Metadata) Attributes() map[string]string {
	out := make(map[string]string, 8)
	set := func(k, v string) {
		if v != "" {
			out[k] = v
		}
	}
	set("title", m.Title)
	set("author", m.Author)
	set("subject", m.Subject)
	set("keywords", m.Keywords)
	set("creator", m.Creator)
	set("producer", m.Producer)
	set("file_path", m.Path)
	out["page_count"] = strconv.Itoa(m.PageCount)
	return out
}
