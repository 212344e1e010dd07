// Package catalog holds the immutable product snapshot used to answer
// customer questions.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"asistente-tienda/internal/domain"
	"asistente-tienda/internal/domain/model"
	"asistente-tienda/internal/domain/ports/repository"
	"asistente-tienda/internal/textnorm"
)

const (
	DefaultLimit = 10
	DefaultCap   = 50

	titleWeight       = 3
	descriptionWeight = 1
)

type entry struct {
	product    model.Product
	titleTerms map[string]struct{}
	descTerms  map[string]struct{}
}

// Index is a read-only product snapshot. It is built once by Load and is
// safe for concurrent use without locking.
type Index struct {
	entries []entry // ordered by id ascending
	byID    map[int64]int
	cap     int
	vocab   []string
}

// Load pulls every product from src and builds the snapshot. Source errors
// and invariant violations are returned as is.
func Load(ctx context.Context, src repository.ProductSource, resultCap int) (*Index, error) {
	products, err := src.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: list products: %w", err)
	}
	return New(products, resultCap)
}

// New builds an index from an in-memory product list.
func New(products []model.Product, resultCap int) (*Index, error) {
	if resultCap <= 0 {
		resultCap = DefaultCap
	}
	idx := &Index{
		entries: make([]entry, 0, len(products)),
		byID:    make(map[int64]int, len(products)),
		cap:     resultCap,
	}
	for _, p := range products {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("catalog: %w", err)
		}
		if _, dup := idx.byID[p.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate product id %d: %w", p.ID, domain.ErrAlreadyExists)
		}
		idx.byID[p.ID] = -1
		idx.entries = append(idx.entries, entry{
			product:    p,
			titleTerms: textnorm.TermSet(p.Title),
			descTerms:  textnorm.TermSet(p.Description),
		})
	}
	sort.Slice(idx.entries, func(i, j int) bool {
		return idx.entries[i].product.ID < idx.entries[j].product.ID
	})

	seen := map[string]struct{}{}
	for i, e := range idx.entries {
		idx.byID[e.product.ID] = i
		if !e.product.Active {
			continue
		}
		for t := range e.titleTerms {
			if _, ok := seen[t]; !ok {
				seen[t] = struct{}{}
				idx.vocab = append(idx.vocab, t)
			}
		}
	}
	sort.Strings(idx.vocab)
	return idx, nil
}

func (x *Index) clamp(limit int) int {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > x.cap {
		limit = x.cap
	}
	return limit
}

// Search ranks active products against query. Each distinct query term adds
// 3 when it appears in the title and 1 when it appears in the description.
// Ties break on higher stock, then lower id. A blank query returns the
// first active products by id; a query made only of stop words matches
// nothing.
func (x *Index) Search(query string, limit int) []model.Product {
	limit = x.clamp(limit)
	if strings.TrimSpace(query) == "" {
		out := make([]model.Product, 0, limit)
		for _, e := range x.entries {
			if len(out) == limit {
				break
			}
			if e.product.Active {
				out = append(out, e.product)
			}
		}
		return out
	}
	terms := textnorm.Terms(query)
	if len(terms) == 0 {
		return []model.Product{}
	}

	type hit struct {
		p     model.Product
		score int
	}
	hits := make([]hit, 0, 8)
	for _, e := range x.entries {
		if !e.product.Active {
			continue
		}
		score := 0
		for _, t := range terms {
			if _, ok := e.titleTerms[t]; ok {
				score += titleWeight
			}
			if _, ok := e.descTerms[t]; ok {
				score += descriptionWeight
			}
		}
		if score > 0 {
			hits = append(hits, hit{p: e.product, score: score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.p.Stock != b.p.Stock {
			return a.p.Stock > b.p.Stock
		}
		return a.p.ID < b.p.ID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]model.Product, len(hits))
	for i, h := range hits {
		out[i] = h.p
	}
	return out
}

// Get returns the product with id, active or not.
func (x *Index) Get(id int64) (model.Product, error) {
	i, ok := x.byID[id]
	if !ok {
		return model.Product{}, domain.ErrNotFound
	}
	return x.entries[i].product, nil
}

// PriceRange returns active products priced within [minCents, maxCents],
// cheapest first. An inverted range yields nothing.
func (x *Index) PriceRange(minCents, maxCents int64) []model.Product {
	out := []model.Product{}
	if minCents > maxCents {
		return out
	}
	for _, e := range x.entries {
		p := e.product
		if p.Active && p.PriceCents >= minCents && p.PriceCents <= maxCents {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PriceCents != out[j].PriceCents {
			return out[i].PriceCents < out[j].PriceCents
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// TitleTerms is the normalized vocabulary of active product titles.
func (x *Index) TitleTerms() []string {
	out := make([]string, len(x.vocab))
	copy(out, x.vocab)
	return out
}

func (x *Index) Len() int { return len(x.entries) }

// All returns a copy of every product, ordered by id.
func (x *Index) All() []model.Product {
	out := make([]model.Product, len(x.entries))
	for i, e := range x.entries {
		out[i] = e.product
	}
	return out
}
