// Package search is an in-memory catalog index. Matching folds Vietnamese
// diacritics, so "dich vu" finds "dịch vụ". An index is read-only once built
// and may be shared between goroutines.
//
// Documents are ranked by the Jaccard similarity of their token set with the
// query's, ties broken by ID.
package search

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Document is one searchable item.
type Document struct {
	ID   string
	Text string
}

// Result is a ranked document. Snippet is the document text with runs of
// whitespace collapsed.
type Result struct {
	ID      string
	Snippet string
	Score   float64
}

// Index answers ranked queries.
type Index interface {
	TopK(query string, k int) []Result
	Len() int
}

// Option tunes New.
type Option func(*settings)

type settings struct {
	minRunes int
	stop     map[string]struct{}
}

// WithMinRunes skips documents shorter than n runes.
func WithMinRunes(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.minRunes = n
		}
	}
}

// WithStopwords ignores the given words in documents and queries.
func WithStopwords(words []string) Option {
	return func(s *settings) {
		for _, w := range words {
			if w = Fold(strings.TrimSpace(w)); w == "" {
				continue
			}
			if s.stop == nil {
				s.stop = make(map[string]struct{})
			}
			s.stop[w] = struct{}{}
		}
	}
}

type entry struct {
	id      string
	snippet string
	size    int // distinct tokens
}

type inverted struct {
	stop     map[string]struct{}
	entries  []entry
	postings map[string][]int
}

// New indexes docs. Documents without any word are dropped.
func New(docs []Document, opts ...Option) Index {
	var s settings
	for _, o := range opts {
		o(&s)
	}
	ix := &inverted{stop: s.stop, postings: make(map[string][]int)}
	for _, d := range docs {
		snippet := strings.Join(strings.Fields(d.Text), " ")
		if snippet == "" || utf8.RuneCountInString(snippet) < s.minRunes {
			continue
		}
		terms := ix.terms(snippet)
		if len(terms) == 0 {
			continue
		}
		pos := len(ix.entries)
		ix.entries = append(ix.entries, entry{id: d.ID, snippet: snippet, size: len(terms)})
		for t := range terms {
			ix.postings[t] = append(ix.postings[t], pos)
		}
	}
	return ix
}

func (ix *inverted) Len() int { return len(ix.entries) }

// TopK returns at most k results, best first. k <= 0 means 10.
func (ix *inverted) TopK(query string, k int) []Result {
	q := ix.terms(query)
	if len(q) == 0 {
		return nil
	}
	if k <= 0 {
		k = 10
	}
	shared := make(map[int]int)
	for t := range q {
		for _, pos := range ix.postings[t] {
			shared[pos]++
		}
	}
	if len(shared) == 0 {
		return nil
	}

	out := make([]Result, 0, len(shared))
	for pos, n := range shared {
		e := ix.entries[pos]
		out = append(out, Result{
			ID:      e.id,
			Snippet: e.snippet,
			Score:   float64(n) / float64(len(q)+e.size-n),
		})
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Score != out[b].Score {
			return out[a].Score > out[b].Score
		}
		return out[a].ID < out[b].ID
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}

var word = regexp.MustCompile(`[\p{L}\p{N}]+`)

func (ix *inverted) terms(s string) map[string]struct{} {
	var set map[string]struct{}
	for _, w := range word.FindAllString(Fold(s), -1) {
		if _, skip := ix.stop[w]; skip {
			continue
		}
		if set == nil {
			set = make(map[string]struct{})
		}
		set[w] = struct{}{}
	}
	return set
}

// Chains keep state between Reset and Transform, so each caller takes its own.
var stripMarks = sync.Pool{New: func() any {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}}

// Fold lower-cases s, drops combining marks and maps đ to d. It is safe for
// concurrent use.
func Fold(s string) string {
	t := stripMarks.Get().(transform.Transformer)
	defer stripMarks.Put(t)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ReplaceAll(strings.ToLower(out), "đ", "d")
}
