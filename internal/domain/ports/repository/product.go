package repository

import (
	"context"

	"asistente-tienda/internal/domain/model"
)

// -----------------------------
// Products
// -----------------------------

// ProductSource is the read side of the store catalog. The catalog index
// loads from it once at startup and never writes back.
type ProductSource interface {
	ListAll(ctx context.Context) ([]model.Product, error)
	ListActive(ctx context.Context) ([]model.Product, error)
	// Get returns domain.ErrNotFound when no product has the id.
	Get(ctx context.Context, id int64) (*model.Product, error)
}

// ProductWriter is used by the seeding tool only.
type ProductWriter interface {
	Upsert(ctx context.Context, p *model.Product) error
}
