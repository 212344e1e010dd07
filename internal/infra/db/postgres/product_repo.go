package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"asistente-tienda/internal/domain"
	"asistente-tienda/internal/domain/model"
	"asistente-tienda/internal/domain/ports/repository"
)

// Ensure interface compliance
var (
	_ repository.ProductSource = (*ProductRepo)(nil)
	_ repository.ProductWriter = (*ProductRepo)(nil)
)

type ProductRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewProductRepo(pool *pgxpool.Pool) *ProductRepo {
	return &ProductRepo{pool: pool, tm: NewTxManager(pool)}
}

const productColumns = `id, title, description, (price * 100)::bigint, stock, is_active, image_url, created_at`

func (r *ProductRepo) ListAll(ctx context.Context) ([]model.Product, error) {
	return r.list(ctx, `SELECT `+productColumns+` FROM products ORDER BY id;`)
}

func (r *ProductRepo) ListActive(ctx context.Context) ([]model.Product, error) {
	return r.list(ctx, `SELECT `+productColumns+` FROM products WHERE is_active ORDER BY id;`)
}

func (r *ProductRepo) list(ctx context.Context, sql string) ([]model.Product, error) {
	rows, err := r.pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []model.Product
	for rows.Next() {
		var p model.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *ProductRepo) Get(ctx context.Context, id int64) (*model.Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1;`, id)
	var p model.Product
	if err := scanProduct(row, &p); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

func scanProduct(row pgx.Row, p *model.Product) error {
	return row.Scan(&p.ID, &p.Title, &p.Description, &p.PriceCents, &p.Stock, &p.Active, &p.ImageURL, &p.CreatedAt)
}

func (r *ProductRepo) Upsert(ctx context.Context, p *model.Product) error {
	return r.upsert(ctx, repository.NoTX, p)
}

// UpsertAll writes every product in one transaction.
func (r *ProductRepo) UpsertAll(ctx context.Context, products []model.Product) error {
	return r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		for i := range products {
			if err := r.upsert(ctx, tx, &products[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *ProductRepo) upsert(ctx context.Context, tx repository.Tx, p *model.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	q, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	const sql = `
INSERT INTO products (id, title, description, price, stock, is_active, image_url, created_at)
VALUES ($1, $2, $3, $4::numeric / 100, $5, $6, $7, COALESCE($8, NOW()))
ON CONFLICT (id) DO UPDATE
  SET title       = EXCLUDED.title,
      description = EXCLUDED.description,
      price       = EXCLUDED.price,
      stock       = EXCLUDED.stock,
      is_active   = EXCLUDED.is_active,
      image_url   = EXCLUDED.image_url;
`
	var created interface{}
	if !p.CreatedAt.IsZero() {
		created = p.CreatedAt
	}
	_, err = q.Exec(ctx, sql, p.ID, p.Title, p.Description, p.PriceCents, p.Stock, p.Active, p.ImageURL, created)
	if err != nil {
		return fmt.Errorf("upsert product %d: %w", p.ID, err)
	}
	return nil
}
