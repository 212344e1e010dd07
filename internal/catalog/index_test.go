//go:build !integration

package catalog

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"asistente-tienda/internal/domain"
	"asistente-tienda/internal/domain/model"
)

func fixture() []model.Product {
	return []model.Product{
		{ID: 1, Title: "Laptop Gaming", Description: "Potente laptop para gaming con RTX 4060", PriceCents: 129999, Stock: 10, Active: true},
		{ID: 2, Title: "Smartphone Pro", Description: "Teléfono con cámara de 108MP", PriceCents: 89999, Stock: 25, Active: true},
		{ID: 3, Title: "Auriculares Wireless", Description: "Cancelación de ruido, compatibles con laptop", PriceCents: 29999, Stock: 50, Active: true},
		{ID: 4, Title: "Laptop Oficina", Description: "Ligera", PriceCents: 59999, Stock: 10, Active: false},
		{ID: 5, Title: "Laptop Estudiante", Description: "Económica", PriceCents: 49999, Stock: 30, Active: true},
	}
}

type fakeSource struct {
	products []model.Product
	err      error
}

func (f *fakeSource) ListAll(ctx context.Context) ([]model.Product, error) { return f.products, f.err }
func (f *fakeSource) ListActive(ctx context.Context) ([]model.Product, error) {
	return nil, errors.New("not used")
}
func (f *fakeSource) Get(ctx context.Context, id int64) (*model.Product, error) {
	return nil, domain.ErrNotFound
}

func mustIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := Load(context.Background(), &fakeSource{products: fixture()}, 50)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return idx
}

func ids(ps []model.Product) []int64 {
	out := make([]int64, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

func TestLoad(t *testing.T) {
	t.Run("source error is returned", func(t *testing.T) {
		boom := errors.New("db down")
		if _, err := Load(context.Background(), &fakeSource{err: boom}, 0); !errors.Is(err, boom) {
			t.Fatalf("expected wrapped source error, got %v", err)
		}
	})

	t.Run("duplicate ids rejected", func(t *testing.T) {
		ps := fixture()
		ps[1].ID = 1
		if _, err := New(ps, 0); !errors.Is(err, domain.ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})

	t.Run("invalid product rejected", func(t *testing.T) {
		ps := fixture()
		ps[0].PriceCents = -1
		if _, err := New(ps, 0); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestSearch(t *testing.T) {
	idx := mustIndex(t)

	t.Run("plural and punctuation still match title", func(t *testing.T) {
		got := idx.Search("¿Qué laptops tienes?", 5)
		// 1 scores 4 (title + description), 5 scores 3 (title),
		// 3 scores 1 (description only). 4 is inactive.
		want := []int64{1, 5, 3}
		if !reflect.DeepEqual(ids(got), want) {
			t.Fatalf("got %v, want %v", ids(got), want)
		}
	})

	t.Run("title and description both count", func(t *testing.T) {
		got := idx.Search("laptop gaming", 5)
		if len(got) == 0 || got[0].ID != 1 {
			t.Fatalf("expected Laptop Gaming first, got %v", ids(got))
		}
	})

	t.Run("accent insensitive", func(t *testing.T) {
		got := idx.Search("telefono camara", 5)
		if !reflect.DeepEqual(ids(got), []int64{2}) {
			t.Fatalf("got %v", ids(got))
		}
	})

	t.Run("empty query returns first active by id", func(t *testing.T) {
		got := idx.Search("  ", 3)
		if !reflect.DeepEqual(ids(got), []int64{1, 2, 3}) {
			t.Fatalf("got %v", ids(got))
		}
	})

	t.Run("limit is honored and capped", func(t *testing.T) {
		if got := idx.Search("laptop", 1); len(got) != 1 {
			t.Fatalf("expected 1 result, got %d", len(got))
		}
		small, _ := New(fixture(), 2)
		if got := small.Search("", 100); len(got) != 2 {
			t.Fatalf("expected cap of 2, got %d", len(got))
		}
	})

	t.Run("no hits", func(t *testing.T) {
		if got := idx.Search("bicicleta", 5); len(got) != 0 {
			t.Fatalf("expected no hits, got %v", ids(got))
		}
	})

	t.Run("stop words only is not a blank query", func(t *testing.T) {
		got := idx.Search("¿y tú?", 5)
		if got == nil || len(got) != 0 {
			t.Fatalf("expected an empty result, got %v", ids(got))
		}
	})
}

func TestSearchReturnsOnlyActive(t *testing.T) {
	idx := mustIndex(t)
	for _, q := range []string{"", "laptop", "oficina ligera", "laptop oficina", "auriculares"} {
		for _, p := range idx.Search(q, 50) {
			if !p.Active {
				t.Errorf("query %q returned inactive product %d", q, p.ID)
			}
		}
	}
}

func TestGet(t *testing.T) {
	idx := mustIndex(t)
	p, err := idx.Get(4)
	if err != nil || p.Title != "Laptop Oficina" {
		t.Fatalf("expected inactive product to be reachable by id, got %+v %v", p, err)
	}
	if _, err := idx.Get(999); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSearchTieBreak(t *testing.T) {
	idx, err := New([]model.Product{
		{ID: 7, Title: "Mouse", PriceCents: 100, Stock: 5, Active: true},
		{ID: 3, Title: "Mouse", PriceCents: 100, Stock: 5, Active: true},
		{ID: 9, Title: "Mouse", PriceCents: 100, Stock: 8, Active: true},
	}, 0)
	if err != nil {
		t.Fatal(err)
	}
	got := idx.Search("mouse", 0)
	if !reflect.DeepEqual(ids(got), []int64{9, 3, 7}) {
		t.Fatalf("expected stock desc then id asc, got %v", ids(got))
	}
}

func TestPriceRange(t *testing.T) {
	idx := mustIndex(t)
	got := idx.PriceRange(29999, 100000)
	if !reflect.DeepEqual(ids(got), []int64{3, 5, 2}) {
		t.Fatalf("got %v", ids(got))
	}
	if got := idx.PriceRange(100, 1); got == nil || len(got) != 0 {
		t.Fatalf("inverted range should be empty, got %v", got)
	}
}

func TestSnapshotIsReadOnly(t *testing.T) {
	idx := mustIndex(t)
	before := idx.All()

	res := idx.Search("laptop", 5)
	res[0].Title = "mutated"
	res[0].PriceCents = 1
	all := idx.All()
	all[0].Active = false
	_ = idx.PriceRange(0, 1<<40)
	_ = idx.TitleTerms()

	if !reflect.DeepEqual(before, idx.All()) {
		t.Fatal("catalog snapshot changed after read operations")
	}
}

func TestTitleTerms(t *testing.T) {
	idx := mustIndex(t)
	terms := idx.TitleTerms()
	has := map[string]bool{}
	for _, term := range terms {
		has[term] = true
	}
	if !has["laptop"] || !has["smartphone"] || !has["auricular"] {
		t.Fatalf("missing expected title terms: %v", terms)
	}
	if has["oficina"] {
		t.Fatalf("inactive product titles must not feed the vocabulary: %v", terms)
	}
}
