// Package search is the read-only discovery surface over stored
// conversations: case-insensitive substring matching, date-bucketed
// grouping and snippet extraction with match highlighting.
package search

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/vijay8672/HealthEcho-Healthcare-Chatbot-using-Retrieval-Augmented-Generation-sub001/internal/chat"
)

// ErrEmptyQuery is returned for blank queries; the UI shows a "type to
// search" prompt instead of listing every session.
var ErrEmptyQuery = errors.New("search query is empty")

// Bucket names a date range. A session lands in exactly one bucket: the
// intervals are half-open on local midnights.
type Bucket string

const (
	BucketToday     Bucket = "Today"
	BucketYesterday Bucket = "Yesterday"
	BucketWeek      Bucket = "Previous 7 Days"
	BucketMonth     Bucket = "Previous 30 Days"
	BucketOlder     Bucket = "Older"
)

// snippetPad is the number of runes kept on each side of the matched
// substring inside a snippet.
const snippetPad = 10

// Entry is one matching session.
type Entry struct {
	SessionID    string    `json:"session_id"`
	Title        string    `json:"title"`
	LastActivity time.Time `json:"last_activity"`
	Snippet      string    `json:"snippet"`
}

// Group is a non-empty bucket of matches, ordered by last activity
// descending.
type Group struct {
	Bucket  Bucket  `json:"bucket"`
	Entries []Entry `json:"entries"`
}

// Lister is the repository slice the index reads from.
type Lister interface {
	ListSessions(ctx context.Context) []chat.Session
}

// Index answers search queries. It holds no state of its own beyond the
// clock, so rerunning a query over an unchanged store yields identical
// results.
type Index struct {
	repo Lister
	now  func() time.Time
	loc  *time.Location
}

func NewIndex(repo Lister) *Index {
	return NewIndexAt(repo, time.Now, time.Local)
}

// NewIndexAt pins the clock and location, for bucket-boundary tests.
func NewIndexAt(repo Lister, now func() time.Time, loc *time.Location) *Index {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	return &Index{repo: repo, now: now, loc: loc}
}

// Search returns matching sessions grouped into date buckets. A session
// matches when its title or any message content contains the query,
// case-insensitively.
func (ix *Index) Search(ctx context.Context, query string) ([]Group, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	lowerQuery := strings.ToLower(query)

	midnight := ix.midnight()
	yesterday := midnight.AddDate(0, 0, -1)
	weekAgo := midnight.AddDate(0, 0, -7)
	monthAgo := midnight.AddDate(0, 0, -30)

	grouped := map[Bucket][]Entry{}
	for _, s := range ix.repo.ListSessions(ctx) {
		if !matches(s, lowerQuery) {
			continue
		}
		entry := Entry{
			SessionID:    s.ID,
			Title:        s.Title,
			LastActivity: s.LastActivity,
			Snippet:      snippetFor(s, lowerQuery),
		}
		b := bucketFor(s.LastActivity.In(ix.loc), midnight, yesterday, weekAgo, monthAgo)
		grouped[b] = append(grouped[b], entry)
	}

	var out []Group
	for _, b := range []Bucket{BucketToday, BucketYesterday, BucketWeek, BucketMonth, BucketOlder} {
		if entries := grouped[b]; len(entries) > 0 {
			out = append(out, Group{Bucket: b, Entries: entries})
		}
	}
	return out, nil
}

func (ix *Index) midnight() time.Time {
	now := ix.now().In(ix.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, ix.loc)
}

func bucketFor(t, midnight, yesterday, weekAgo, monthAgo time.Time) Bucket {
	switch {
	case !t.Before(midnight):
		return BucketToday
	case !t.Before(yesterday):
		return BucketYesterday
	case !t.Before(weekAgo):
		return BucketWeek
	case !t.Before(monthAgo):
		return BucketMonth
	default:
		return BucketOlder
	}
}

func matches(s chat.Session, lowerQuery string) bool {
	if strings.Contains(strings.ToLower(s.Title), lowerQuery) {
		return true
	}
	for _, m := range s.Messages {
		if strings.Contains(strings.ToLower(m.Content), lowerQuery) {
			return true
		}
	}
	return false
}

// snippetFor extracts a highlighted window from the first message whose
// content contains the query. Title-only matches have no snippet.
func snippetFor(s chat.Session, lowerQuery string) string {
	for _, m := range s.Messages {
		if strings.Contains(strings.ToLower(m.Content), lowerQuery) {
			return buildSnippet(m.Content, lowerQuery)
		}
	}
	return ""
}

// buildSnippet cuts a rune window around the first case-insensitive
// match, padded with an ellipsis on each truncated end, and wraps every
// occurrence of the matched literal inside the window in <mark> tags.
func buildSnippet(content, lowerQuery string) string {
	runes := []rune(content)
	lowerRunes := []rune(strings.ToLower(content))
	queryRunes := []rune(lowerQuery)

	start := indexRunes(lowerRunes, queryRunes, 0)
	if start < 0 {
		return ""
	}
	matched := string(runes[start : start+len(queryRunes)])

	winStart := start - snippetPad
	if winStart < 0 {
		winStart = 0
	}
	winEnd := start + len(queryRunes) + snippetPad
	if winEnd > len(runes) {
		winEnd = len(runes)
	}

	window := strings.TrimSpace(string(runes[winStart:winEnd]))
	highlighted := highlight(window, matched)

	if winStart > 0 {
		highlighted = "..." + highlighted
	}
	if winEnd < len(runes) {
		highlighted += "..."
	}
	return highlighted
}

// highlight wraps every case-insensitive occurrence of literal in
// <mark></mark>, preserving the original casing of each occurrence.
func highlight(text, literal string) string {
	textRunes := []rune(text)
	lowerText := []rune(strings.ToLower(text))
	lowerLiteral := []rune(strings.ToLower(literal))
	if len(lowerLiteral) == 0 {
		return text
	}

	var b strings.Builder
	i := 0
	for i < len(textRunes) {
		j := indexRunes(lowerText, lowerLiteral, i)
		if j < 0 {
			b.WriteString(string(textRunes[i:]))
			break
		}
		b.WriteString(string(textRunes[i:j]))
		b.WriteString("<mark>")
		b.WriteString(string(textRunes[j : j+len(lowerLiteral)]))
		b.WriteString("</mark>")
		i = j + len(lowerLiteral)
	}
	return b.String()
}

// indexRunes finds needle in haystack starting at from, in rune offsets.
func indexRunes(haystack, needle []rune, from int) int {
	if len(needle) == 0 || from >= len(haystack) {
		return -1
	}
	for i := from; i+len(needle) <= len(haystack); i++ {
		match := true
		for k := range needle {
			if haystack[i+k] != needle[k] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
