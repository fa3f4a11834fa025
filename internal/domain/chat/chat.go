// Package chat holds conversation sessions and their recorded exchanges.
package chat

import (
	"strings"
	"time"

	"github.com/kailas-cloud/papershelf/internal/domain/search/result"
)

// DefaultTitle names sessions created without a title.
const DefaultTitle = "New Chat"

// MaxTitleLength bounds session titles, in characters.
const MaxTitleLength = 200

// Session groups the exchanges of one conversation.
type Session struct {
	ID         string
	Title      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	QueryCount int
}

// NormalizeTitle trims the title, applies DefaultTitle and truncates long titles.
func NormalizeTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return DefaultTitle
	}
	if r := []rune(title); len(r) > MaxTitleLength {
		return string(r[:MaxTitleLength])
	}
	return title
}

// Source is a retrieved chunk as recorded with an answer.
type Source struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
	Distance float64           `json:"distance"`
}

// SourcesFromResults snapshots retrieval results for storage.
func SourcesFromResults(results []result.Result) []Source {
	out := make([]Source, len(results))
	for i := range results {
		r := &results[i]
		out[i] = Source{
			ID:       r.ID(),
			Text:     r.Text(),
			Metadata: r.Metadata().Flatten(),
			Distance: r.Distance(),
		}
	}
	return out
}

// Entry is one question and answer within a session.
type Entry struct {
	ID        int64
	SessionID string
	Query     string
	Answer    string
	Sources   []Source
	CreatedAt time.Time
}
