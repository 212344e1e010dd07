// Package memory serves the catalog from a YAML fixture list.
package memory

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"asistente-tienda/internal/domain"
	"asistente-tienda/internal/domain/model"
	"asistente-tienda/internal/domain/ports/repository"
)

//go:embed fixtures/products.yaml
var bundledFixtures []byte

var (
	_ repository.ProductSource = (*ProductSource)(nil)
	_ repository.ProductWriter = (*ProductSource)(nil)
)

type fixtureFile struct {
	Products []fixtureProduct `yaml:"products"`
}

type fixtureProduct struct {
	ID          int64  `yaml:"id"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Price       string `yaml:"price"`
	Stock       int    `yaml:"stock"`
	Active      *bool  `yaml:"active"`
	ImageURL    string `yaml:"image_url"`
}

// ProductSource keeps products in id order behind a mutex.
type ProductSource struct {
	mu       sync.RWMutex
	products map[int64]model.Product
}

func NewProductSource(products []model.Product) *ProductSource {
	s := &ProductSource{products: make(map[int64]model.Product, len(products))}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

// LoadFixtures reads the YAML at path, or the bundled sample catalog when
// path is empty.
func LoadFixtures(path string) (*ProductSource, error) {
	data := bundledFixtures
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read fixtures: %w", err)
		}
		data = b
	}
	products, err := ParseFixtures(data)
	if err != nil {
		return nil, err
	}
	return NewProductSource(products), nil
}

// ParseFixtures decodes and validates a fixture document. Products without
// an explicit active flag are active.
func ParseFixtures(data []byte) ([]model.Product, error) {
	var f fixtureFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	out := make([]model.Product, 0, len(f.Products))
	seen := make(map[int64]struct{}, len(f.Products))
	now := time.Now().UTC()
	for i, fp := range f.Products {
		cents, err := model.ParsePrice(fp.Price)
		if err != nil {
			return nil, fmt.Errorf("fixture %d (%q): %w", i, fp.Title, err)
		}
		active := fp.Active == nil || *fp.Active
		p, err := model.NewProduct(fp.ID, fp.Title, fp.Description, cents, fp.Stock, active, fp.ImageURL)
		if err != nil {
			return nil, fmt.Errorf("fixture %d: %w", i, err)
		}
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("fixture %d: duplicate id %d: %w", i, p.ID, domain.ErrAlreadyExists)
		}
		seen[p.ID] = struct{}{}
		p.CreatedAt = now
		out = append(out, *p)
	}
	return out, nil
}

func (s *ProductSource) ListAll(ctx context.Context) ([]model.Product, error) {
	return s.list(ctx, false)
}

func (s *ProductSource) ListActive(ctx context.Context) ([]model.Product, error) {
	return s.list(ctx, true)
}

func (s *ProductSource) list(ctx context.Context, activeOnly bool) ([]model.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Product, 0, len(s.products))
	for _, p := range s.products {
		if activeOnly && !p.Active {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *ProductSource) Get(ctx context.Context, id int64) (*model.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (s *ProductSource) Upsert(ctx context.Context, p *model.Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = *p
	return nil
}
