package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"asistente-tienda/internal/domain/model"
	"asistente-tienda/internal/domain/ports/repository"
	"asistente-tienda/internal/infra/ws"
)

// Catalog is the read side of the product index served over HTTP.
type Catalog interface {
	Search(query string, limit int) []model.Product
	Get(id int64) (model.Product, error)
	PriceRange(minCents, maxCents int64) []model.Product
}

type Knowledge interface {
	All() []model.Passage
}

// Gateway is the websocket endpoint plus its diagnostics view.
type Gateway interface {
	http.Handler
	Sessions() []ws.SessionInfo
}

// Transcripts reads persisted support chats.
type Transcripts interface {
	ListMessages(ctx context.Context, sessionID string) ([]repository.TranscriptMessage, error)
}

type Deps struct {
	Catalog     Catalog
	Knowledge   Knowledge
	Gateway     Gateway
	Transcripts Transcripts  // nil when transcripts are not persisted
	Auth        *AuthManager // nil disables the admin routes
}

// Server owns the chi router for the public and admin HTTP surface.
type Server struct {
	deps           Deps
	requestTimeout time.Duration
	log            *zerolog.Logger
}

func NewServer(deps Deps, requestTimeout time.Duration, logger *zerolog.Logger) *Server {
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	l := logger.With().Str("component", "http").Logger()
	return &Server{deps: deps, requestTimeout: requestTimeout, log: &l}
}

// Handler builds the full route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())
	if s.deps.Gateway != nil {
		r.Get("/ws/support", s.deps.Gateway.ServeHTTP)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Timeout(s.requestTimeout))

		r.Get("/products", s.searchProducts)
		r.Get("/products/price-range", s.productsByPrice)
		r.Get("/products/{id}", s.getProduct)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/auth/login", s.login)
			r.Post("/auth/logout", s.logout)
			r.Group(func(r chi.Router) {
				r.Use(AdminOnly(s.deps.Auth))
				r.Get("/knowledge", s.listKnowledge)
				r.Get("/sessions", s.listSessions)
				r.Get("/conversations/{id}", s.getConversation)
			})
		})
	})

	return Chain(r, TraceID(), RequestLog(s.log), Recover(s.log))
}
