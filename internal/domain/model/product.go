package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"asistente-tienda/internal/domain"
)

// Product is a catalog item. Prices are kept in cents to avoid float drift.
type Product struct {
	ID          int64
	Title       string
	Description string
	PriceCents  int64
	Stock       int
	Active      bool
	ImageURL    string
	CreatedAt   time.Time
}

// NewProduct validates and constructs a product.
func NewProduct(id int64, title, description string, priceCents int64, stock int, active bool, imageURL string) (*Product, error) {
	title = strings.TrimSpace(title)
	if title == "" || priceCents < 0 || stock < 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &Product{
		ID:          id,
		Title:       title,
		Description: description,
		PriceCents:  priceCents,
		Stock:       stock,
		Active:      active,
		ImageURL:    imageURL,
		CreatedAt:   time.Now(),
	}, nil
}

// Validate checks the catalog invariants on an already built product.
func (p Product) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("product %d: empty title: %w", p.ID, domain.ErrInvalidArgument)
	}
	if p.PriceCents < 0 {
		return fmt.Errorf("product %d: negative price: %w", p.ID, domain.ErrInvalidArgument)
	}
	if p.Stock < 0 {
		return fmt.Errorf("product %d: negative stock: %w", p.ID, domain.ErrInvalidArgument)
	}
	return nil
}

// Price renders the price with two decimals, e.g. "1299.99".
func (p Product) Price() string { return FormatCents(p.PriceCents) }

// PriceFloat is the price in currency units, used on the wire.
func (p Product) PriceFloat() float64 { return float64(p.PriceCents) / 100 }

// FormatCents renders cents as "units.cc".
func FormatCents(c int64) string {
	sign := ""
	if c < 0 {
		sign, c = "-", -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}

// ParsePrice converts a decimal string such as "1299.99" or "15" to cents.
// Only ASCII digits are accepted on each side of the point, with at most two
// fractional digits, so signs are rejected.
func ParsePrice(s string) (int64, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "$"))
	whole, frac, hasFrac := strings.Cut(s, ".")
	if !allDigits(whole) || (hasFrac && (!allDigits(frac) || len(frac) > 2)) {
		return 0, fmt.Errorf("price %q: %w", s, domain.ErrInvalidArgument)
	}
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || units > math.MaxInt64/100-1 {
		return 0, fmt.Errorf("price %q: %w", s, domain.ErrInvalidArgument)
	}
	var cents int64
	if hasFrac {
		if len(frac) == 1 {
			frac += "0"
		}
		cents, _ = strconv.ParseInt(frac, 10, 64)
	}
	return units*100 + cents, nil
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
