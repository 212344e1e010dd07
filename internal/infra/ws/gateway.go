// Package ws serves the support chat channel over WebSocket.
package ws

import (
	"context"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"asistente-tienda/internal/domain/model"
	"asistente-tienda/internal/domain/ports/repository"
	"asistente-tienda/internal/infra/i18n"
	"asistente-tienda/internal/infra/worker"
	"asistente-tienda/internal/usecase"
)

const (
	DefaultOutboundBuffer = 32
	DefaultContextDepth   = 4
	defaultWriteTimeout   = 10 * time.Second
	closeGrace            = time.Second
)

// Limiter is satisfied by redis.RateLimiter. client is the remote address
// of the connection.
type Limiter interface {
	Allow(ctx context.Context, client string, limit int, window time.Duration) (bool, error)
}

// Submitter is satisfied by worker.Pool.
type Submitter interface {
	Submit(task worker.Task) error
}

type Config struct {
	HistoryDepth      int
	ContextDepth      int
	OutboundBuffer    int
	MaxUtteranceBytes int
	AllowedOrigins    []string
	WriteTimeout      time.Duration
	LogUtterances     bool // log customer text in full instead of a redacted preview
}

func (c *Config) defaults() {
	if c.HistoryDepth <= 0 {
		c.HistoryDepth = model.DefaultHistoryDepth
	}
	if c.ContextDepth <= 0 || c.ContextDepth > DefaultContextDepth {
		c.ContextDepth = DefaultContextDepth
	}
	if c.OutboundBuffer <= 0 {
		c.OutboundBuffer = DefaultOutboundBuffer
	}
	if c.MaxUtteranceBytes <= 0 {
		c.MaxUtteranceBytes = usecase.DefaultMaxUtteranceBytes
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
}

type Option func(*Gateway)

// WithRateLimiter drops inbound frames over limit per window and client.
func WithRateLimiter(l Limiter, limit int, window time.Duration) Option {
	return func(g *Gateway) {
		g.limiter = l
		g.rateLimit = limit
		g.rateWindow = window
	}
}

// WithTranscripts persists chats through jobs so a slow store never
// delays a turn.
func WithTranscripts(repo repository.TranscriptRepository, jobs Submitter) Option {
	return func(g *Gateway) {
		g.transcripts = repo
		g.jobs = jobs
	}
}

// Gateway owns every live support session.
type Gateway struct {
	responder usecase.ResponderUseCase
	tr        *i18n.Translator
	cfg       Config
	upgrader  websocket.Upgrader
	log       *zerolog.Logger

	limiter    Limiter
	rateLimit  int
	rateWindow time.Duration

	transcripts repository.TranscriptRepository
	jobs        Submitter

	mu       sync.Mutex
	conns    map[string]*conn
	draining bool
	wg       sync.WaitGroup
}

func NewGateway(responder usecase.ResponderUseCase, tr *i18n.Translator, cfg Config, logger *zerolog.Logger, opts ...Option) *Gateway {
	cfg.defaults()
	l := logger.With().Str("component", "ws_gateway").Logger()
	g := &Gateway{
		responder: responder,
		tr:        tr,
		cfg:       cfg,
		log:       &l,
		conns:     make(map[string]*conn),
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     g.checkOrigin,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *Gateway) checkOrigin(r *http.Request) bool {
	if len(g.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range g.cfg.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// ServeHTTP upgrades the request and runs the session until the transport
// closes.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	draining := g.draining
	g.mu.Unlock()
	if draining {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	wsConn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already wrote the HTTP error
		g.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := newConn(g, wsConn, ulid.Make().String(), clientAddr(r), r.Context())
	if !g.add(c) {
		_ = wsConn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(closeGrace))
		_ = wsConn.Close()
		return
	}
	defer g.remove(c)
	c.run()
}

func (g *Gateway) add(c *conn) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.draining {
		return false
	}
	g.conns[c.sess.ID] = c
	g.wg.Add(1)
	return true
}

func (g *Gateway) remove(c *conn) {
	g.mu.Lock()
	delete(g.conns, c.sess.ID)
	g.mu.Unlock()
	g.wg.Done()
}

// SessionInfo is a diagnostics view of one live session.
type SessionInfo struct {
	ID            string    `json:"id"`
	Client        string    `json:"client"`
	State         string    `json:"state"`
	EstablishedAt time.Time `json:"established_at"`
	LastActivity  time.Time `json:"last_activity"`
	Turns         int       `json:"turns"`
	Pending       int       `json:"pending"`
}

// Sessions returns live sessions, oldest first.
func (g *Gateway) Sessions() []SessionInfo {
	g.mu.Lock()
	conns := make([]*conn, 0, len(g.conns))
	for _, c := range g.conns {
		conns = append(conns, c)
	}
	g.mu.Unlock()

	out := make([]SessionInfo, 0, len(conns))
	for _, c := range conns {
		out = append(out, SessionInfo{
			ID:            c.sess.ID,
			Client:        c.sess.Client,
			State:         string(c.sess.State()),
			EstablishedAt: c.sess.EstablishedAt,
			LastActivity:  c.sess.LastActivity(),
			Turns:         len(c.sess.History()),
			Pending:       int(c.pending.Load()),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Shutdown closes every session with 1001 and waits for them to finish,
// or for ctx to end. New connections are refused from the first call.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	g.draining = true
	conns := make([]*conn, 0, len(g.conns))
	for _, c := range g.conns {
		conns = append(conns, c)
	}
	g.mu.Unlock()

	for _, c := range conns {
		c.closeWith(websocket.CloseGoingAway, "server shutting down")
	}

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func clientAddr(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
