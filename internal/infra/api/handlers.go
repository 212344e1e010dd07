package api

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"asistente-tienda/internal/domain"
	"asistente-tienda/internal/domain/model"
	"asistente-tienda/internal/infra/logging"
	"asistente-tienda/internal/infra/metrics"
	"asistente-tienda/internal/infra/ws"
)

const (
	defaultSearchLimit = 10
	maxLoginBody       = 4 << 10
)

type Product struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Stock       int       `json:"stock"`
	ImageURL    string    `json:"image_url,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

type Passage struct {
	ID    string   `json:"id"`
	Title string   `json:"title"`
	Body  string   `json:"body"`
	Tags  []string `json:"tags"`
}

type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Intent    string    `json:"intent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Conversation struct {
	ID       string    `json:"id"`
	Messages []Message `json:"messages"`
}

type listResponse[T any] struct {
	Items []T `json:"items"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toProduct(p model.Product) Product {
	return Product{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Price:       p.PriceFloat(),
		Stock:       p.Stock,
		ImageURL:    p.ImageURL,
		IsActive:    p.Active,
		CreatedAt:   p.CreatedAt,
	}
}

func toProducts(ps []model.Product) []Product {
	out := make([]Product, 0, len(ps))
	for _, p := range ps {
		out = append(out, toProduct(p))
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// GET /api/v1/products?q=&limit=
// An empty q lists active products by id.
func (s *Server) searchProducts(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	limit := defaultSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, listResponse[Product]{Items: toProducts(s.deps.Catalog.Search(q, limit))})
}

// GET /api/v1/products/price-range?min=&max=
func (s *Server) productsByPrice(w http.ResponseWriter, r *http.Request) {
	minCents, err := priceParam(r, "min", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "min must be a non-negative price")
		return
	}
	maxCents, err := priceParam(r, "max", math.MaxInt64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "max must be a non-negative price")
		return
	}
	writeJSON(w, http.StatusOK, listResponse[Product]{Items: toProducts(s.deps.Catalog.PriceRange(minCents, maxCents))})
}

func priceParam(r *http.Request, name string, def int64) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	return model.ParsePrice(raw)
}

// GET /api/v1/products/{id}
func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}
	p, err := s.deps.Catalog.Get(id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "product not found")
		return
	case err != nil:
		l := logging.With(r.Context(), s.log)
		l.Error().Err(err).Int64("product_id", id).Msg("catalog get failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, toProduct(p))
}

type loginRequest struct {
	Key string `json:"key"`
}

// POST /api/v1/admin/auth/login
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	l := logging.With(r.Context(), s.log)
	if s.deps.Auth == nil {
		metrics.IncAdminLogin("disabled")
		writeError(w, http.StatusForbidden, "admin access is disabled")
		return
	}
	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxLoginBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !s.deps.Auth.CheckKey(req.Key) {
		metrics.IncAdminLogin("unauthorized")
		l.Warn().Str("client", r.RemoteAddr).Msg("admin login rejected")
		writeError(w, http.StatusUnauthorized, "invalid key")
		return
	}
	token, err := s.deps.Auth.Mint(w)
	if err != nil {
		l.Error().Err(err).Msg("mint admin token")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	metrics.IncAdminLogin("authorized")
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_in": int(s.deps.Auth.cfg.TTL.Seconds()),
	})
}

// POST /api/v1/admin/auth/logout
func (s *Server) logout(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Auth != nil {
		s.deps.Auth.Clear(w)
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/admin/knowledge
func (s *Server) listKnowledge(w http.ResponseWriter, _ *http.Request) {
	all := s.deps.Knowledge.All()
	out := make([]Passage, 0, len(all))
	for _, p := range all {
		tags := p.Tags
		if tags == nil {
			tags = []string{}
		}
		out = append(out, Passage{ID: p.ID, Title: p.Title, Body: p.Body, Tags: tags})
	}
	writeJSON(w, http.StatusOK, listResponse[Passage]{Items: out})
}

// GET /api/v1/admin/sessions
func (s *Server) listSessions(w http.ResponseWriter, _ *http.Request) {
	var sessions []ws.SessionInfo
	if s.deps.Gateway != nil {
		sessions = s.deps.Gateway.Sessions()
	}
	if sessions == nil {
		sessions = []ws.SessionInfo{}
	}
	writeJSON(w, http.StatusOK, listResponse[ws.SessionInfo]{Items: sessions})
}

// GET /api/v1/admin/conversations/{id}
// id is the session id shown by /admin/sessions and in the logs.
func (s *Server) getConversation(w http.ResponseWriter, r *http.Request) {
	if s.deps.Transcripts == nil {
		writeError(w, http.StatusNotFound, "transcripts are not persisted")
		return
	}
	id, err := ulid.ParseStrict(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}
	msgs, err := s.deps.Transcripts.ListMessages(r.Context(), id.String())
	if err != nil {
		l := logging.With(r.Context(), s.log)
		l.Error().Err(err).Str("session_id", id.String()).Msg("list transcript failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if len(msgs) == 0 {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	out := Conversation{ID: id.String(), Messages: make([]Message, 0, len(msgs))}
	for _, m := range msgs {
		out.Messages = append(out.Messages, Message{
			Role:      string(m.Role),
			Content:   m.Content,
			Intent:    m.Intent,
			CreatedAt: m.At,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
