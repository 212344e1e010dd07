// Package knowledge holds the store's policy and FAQ passages and answers
// keyword queries against them.
package knowledge

import (
	"fmt"
	"sort"
	"strings"

	"asistente-tienda/internal/domain"
	"asistente-tienda/internal/domain/model"
	"asistente-tienda/internal/textnorm"
)

const (
	DefaultLimit = 3
	DefaultCap   = 10

	titleWeight = 2
	bodyWeight  = 1
)

// Document is a raw (title, body) pair as produced by a loader.
type Document struct {
	Title string `yaml:"title"`
	Body  string `yaml:"body"`
}

type entry struct {
	passage    model.Passage
	titleTerms map[string]struct{}
	bodyTerms  map[string]struct{}
}

// Base is an immutable passage snapshot, ordered by passage id.
type Base struct {
	entries []entry
	cap     int
}

// New builds a snapshot. Titles must be unique and non-empty.
func New(docs []Document, resultCap int) (*Base, error) {
	if resultCap <= 0 {
		resultCap = DefaultCap
	}
	b := &Base{entries: make([]entry, 0, len(docs)), cap: resultCap}
	seen := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		title := strings.TrimSpace(d.Title)
		if title == "" {
			return nil, fmt.Errorf("knowledge: empty title: %w", domain.ErrInvalidArgument)
		}
		if _, dup := seen[title]; dup {
			return nil, fmt.Errorf("knowledge: duplicate title %q: %w", title, domain.ErrAlreadyExists)
		}
		seen[title] = struct{}{}

		body := strings.TrimSpace(d.Body)
		tags := textnorm.Terms(title + " " + body)
		sort.Strings(tags)
		b.entries = append(b.entries, entry{
			passage: model.Passage{
				ID:    model.PassageID(title),
				Title: title,
				Body:  body,
				Tags:  tags,
			},
			titleTerms: textnorm.TermSet(title),
			bodyTerms:  textnorm.TermSet(body),
		})
	}
	sort.Slice(b.entries, func(i, j int) bool {
		return b.entries[i].passage.ID < b.entries[j].passage.ID
	})
	return b, nil
}

// Search scores passages by distinct query terms: 2 per title match, 1 per
// body match. Only positive scores are returned, best first, ties by id.
func (b *Base) Search(query string, limit int) []model.Passage {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > b.cap {
		limit = b.cap
	}
	terms := textnorm.Terms(query)
	if len(terms) == 0 {
		return []model.Passage{}
	}

	type hit struct {
		i     int
		score int
	}
	hits := make([]hit, 0, 4)
	for i, e := range b.entries {
		score := 0
		for _, t := range terms {
			if _, ok := e.titleTerms[t]; ok {
				score += titleWeight
			}
			if _, ok := e.bodyTerms[t]; ok {
				score += bodyWeight
			}
		}
		if score > 0 {
			hits = append(hits, hit{i: i, score: score})
		}
	}
	// entries are already in id order, so a stable sort keeps id ascending on ties
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]model.Passage, len(hits))
	for k, h := range hits {
		out[k] = clonePassage(b.entries[h.i].passage)
	}
	return out
}

// All returns every passage ordered by id.
func (b *Base) All() []model.Passage {
	out := make([]model.Passage, len(b.entries))
	for i, e := range b.entries {
		out[i] = clonePassage(e.passage)
	}
	return out
}

func (b *Base) Len() int { return len(b.entries) }

func clonePassage(p model.Passage) model.Passage {
	p.Tags = append([]string(nil), p.Tags...)
	return p
}

// Merge concatenates document sets, keeping the first document for each
// title. It returns the titles that were dropped.
func Merge(sets ...[]Document) ([]Document, []string) {
	seen := map[string]struct{}{}
	var out []Document
	var dropped []string
	for _, set := range sets {
		for _, d := range set {
			title := strings.TrimSpace(d.Title)
			if title == "" || strings.TrimSpace(d.Body) == "" {
				continue
			}
			if _, ok := seen[title]; ok {
				dropped = append(dropped, title)
				continue
			}
			seen[title] = struct{}{}
			out = append(out, Document{Title: title, Body: d.Body})
		}
	}
	return out, dropped
}
