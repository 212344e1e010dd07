package knowledge

import (
	"sync/atomic"

	"asistente-tienda/internal/domain/model"
)

// Holder publishes the current snapshot. Readers always see one complete
// Base; a reload swaps the pointer and never mutates the old snapshot.
type Holder struct {
	cur atomic.Pointer[Base]
}

func NewHolder(b *Base) *Holder {
	h := &Holder{}
	h.cur.Store(b)
	return h
}

func (h *Holder) Current() *Base { return h.cur.Load() }

func (h *Holder) Swap(b *Base) { h.cur.Store(b) }

func (h *Holder) Search(query string, limit int) []model.Passage {
	return h.Current().Search(query, limit)
}

func (h *Holder) All() []model.Passage { return h.Current().All() }
