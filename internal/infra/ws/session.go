package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"asistente-tienda/internal/domain"
	"asistente-tienda/internal/domain/model"
	"asistente-tienda/internal/infra/logging"
	"asistente-tienda/internal/infra/metrics"
	"asistente-tienda/internal/usecase"
)

var errQueueFull = errors.New("outbound queue full")

// outFrame is an encoded frame waiting for the writer. counted frames hold
// one slot of the backpressure budget until written; closeCode != 0 makes
// the writer close the transport right after the frame.
type outFrame struct {
	kind      string
	payload   []byte
	counted   bool
	closeCode int
}

// conn runs one session: a reader (the ServeHTTP goroutine), a sequential
// turn worker and a writer. pending counts accepted utterances that have
// not been written back yet, whether still queued, in flight or encoded.
type conn struct {
	g    *Gateway
	ws   *websocket.Conn
	sess *model.ChatSession
	log  *zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	out   chan outFrame
	turns chan string

	pending atomic.Int32
	closed  atomic.Bool
	failing atomic.Bool

	closeOnce    sync.Once
	teardownOnce sync.Once
	writerDone   chan struct{}
	workerDone   chan struct{}
}

func newConn(g *Gateway, wsConn *websocket.Conn, id, client string, parent context.Context) *conn {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	ctx = logging.WithSessID(ctx, id)
	ctx = logging.WithClient(ctx, client)
	return &conn{
		g:          g,
		ws:         wsConn,
		sess:       model.NewChatSession(id, client, g.cfg.HistoryDepth),
		log:        logging.With(ctx, g.log),
		ctx:        ctx,
		cancel:     cancel,
		out:        make(chan outFrame, g.cfg.OutboundBuffer+16),
		turns:      make(chan string, g.cfg.OutboundBuffer),
		writerDone: make(chan struct{}),
		workerDone: make(chan struct{}),
	}
}

func (c *conn) run() {
	metrics.SessionOpened()
	c.log.Info().Msg("session opened")
	c.persistOpen()

	go c.writeLoop()
	go c.turnLoop()

	_ = c.enqueue(FrameChatOpened, textFrame{Type: FrameChatOpened, Message: c.g.tr.T("welcome")}, false, 0)
	if err := c.sess.Greet(); err != nil {
		c.fail(err)
	}

	c.readLoop()
	c.teardown()
	<-c.writerDone
	<-c.workerDone
}

func (c *conn) readLoop() {
	frameCap := c.frameCap()
	for {
		mt, r, err := c.ws.NextReader()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) && !c.closed.Load() {
				c.log.Debug().Err(err).Msg("transport closed")
			}
			return
		}
		data, err := io.ReadAll(io.LimitReader(r, frameCap+1))
		if err != nil {
			return
		}
		oversized := int64(len(data)) > frameCap
		if oversized {
			// drop the tail so the next frame starts clean
			if _, err := io.Copy(io.Discard, r); err != nil {
				return
			}
		}
		if c.closed.Load() || c.failing.Load() {
			continue
		}
		c.sess.Touch()
		if oversized {
			c.warnInvalid(usecase.ErrUtteranceTooLong)
			continue
		}
		c.accept(mt, data)
	}
}

// frameCap bounds how much of one inbound frame is buffered. It leaves
// room for JSON framing and escapes around a maximum size utterance.
func (c *conn) frameCap() int64 {
	return int64(c.g.cfg.MaxUtteranceBytes)*4 + 1024
}

// accept decodes, validates and queues one inbound frame, or answers it
// with a warning.
func (c *conn) accept(mt int, data []byte) {
	text, err := decodeInbound(mt, data)
	switch {
	case errors.Is(err, errBinaryFrame):
		c.warn("binary", c.g.tr.T("warn_binary"))
		return
	case err != nil:
		c.warn("malformed", c.g.tr.T("warn_malformed"))
		return
	}

	utterance, err := usecase.Validate(text, c.g.cfg.MaxUtteranceBytes)
	if err != nil {
		c.warnInvalid(err)
		return
	}

	if int(c.pending.Load()) >= c.g.cfg.OutboundBuffer {
		c.warn("backpressure", c.g.tr.T("warn_busy"))
		return
	}

	if c.g.limiter != nil {
		ok, err := c.g.limiter.Allow(c.ctx, c.sess.Client, c.g.rateLimit, c.g.rateWindow)
		if err != nil {
			c.log.Warn().Err(err).Msg("rate limiter unavailable, allowing")
		} else if !ok {
			c.warn("rate_limit", c.g.tr.T("warn_rate_limited"))
			return
		}
	}

	c.pending.Add(1)
	select {
	case c.turns <- utterance:
	default:
		c.pending.Add(-1)
		c.warn("backpressure", c.g.tr.T("warn_busy"))
	}
}

func (c *conn) turnLoop() {
	defer close(c.workerDone)
	defer func() {
		if r := recover(); r != nil {
			c.fail(fmt.Errorf("panic in turn: %v", r))
		}
	}()
	for {
		select {
		case <-c.ctx.Done():
			return
		case u := <-c.turns:
			c.handle(u)
		}
	}
}

func (c *conn) handle(utterance string) {
	received := time.Now().UTC()
	reply, err := c.g.responder.Respond(c.ctx, usecase.TurnInput{
		Utterance: utterance,
		Context:   c.sess.Recent(c.g.cfg.ContextDepth),
	})
	if err == nil && c.ctx.Err() != nil {
		err = c.ctx.Err()
	}
	if err != nil {
		c.pending.Add(-1)
		switch {
		case c.ctx.Err() != nil:
			// transport is gone; the reply is discarded
		case errors.Is(err, domain.ErrInvalidInput):
			c.warnInvalid(err)
		default:
			c.fail(err)
		}
		return
	}

	at := reply.Turn.Timestamp
	if at.IsZero() {
		at = time.Now().UTC()
	}
	if err := c.sess.Record(model.Exchange{Utterance: utterance, Reply: reply.Text, At: at}); err != nil {
		c.pending.Add(-1)
		c.fail(err)
		return
	}

	metrics.IncTurn(reply.Intent.String(), reply.Fallback)
	if reply.Fallback {
		metrics.IncFallback(reply.Intent.String(), reply.FallbackReason)
	}
	c.persistTurn(utterance, received, reply.Text, at, reply.Intent.String())
	c.log.Debug().
		Str("utterance", logging.Redact(utterance, c.g.cfg.LogUtterances)).
		Str("intent", reply.Intent.String()).
		Bool("fallback", reply.Fallback).
		Int("recommendations", len(reply.Recommendations)).
		Msg("turn answered")

	if err := c.enqueue(FrameBot, newBotFrame(reply.Text, reply.Recommendations, at), true, 0); err != nil {
		c.log.Debug().Err(err).Msg("reply not delivered")
	}
}

func (c *conn) warnInvalid(err error) {
	msg := c.g.tr.T("warn_empty")
	if errors.Is(err, usecase.ErrUtteranceTooLong) {
		msg = c.g.tr.T("warn_too_long", c.g.cfg.MaxUtteranceBytes)
	}
	c.warn("invalid", msg)
}

func (c *conn) warn(reason, msg string) {
	metrics.IncInboundDropped(reason)
	if err := c.enqueue(FrameWarning, textFrame{Type: FrameWarning, Message: msg}, false, 0); err != nil {
		c.log.Debug().Err(err).Str("reason", reason).Msg("warning dropped")
	}
}

// fail reports an internal error to the client and closes with 1011.
func (c *conn) fail(err error) {
	if !c.failing.CompareAndSwap(false, true) {
		return
	}
	c.log.Error().Err(err).Msg("session failed")
	if err := c.enqueue(FrameError, textFrame{Type: FrameError, Message: internalMessage}, false, websocket.CloseInternalServerErr); err != nil {
		c.log.Debug().Err(err).Msg("error frame not delivered")
	}
}

// enqueue hands a frame to the writer. Counted and closing frames wait for
// room; warnings are dropped when the client is not reading.
func (c *conn) enqueue(kind string, v any, counted bool, closeCode int) error {
	release := func() {
		if counted {
			c.pending.Add(-1)
		}
	}
	if c.closed.Load() {
		release()
		return domain.ErrTransportClosed
	}
	payload, err := json.Marshal(v)
	if err != nil {
		release()
		return fmt.Errorf("encode %s frame: %w", kind, err)
	}
	f := outFrame{kind: kind, payload: payload, counted: counted, closeCode: closeCode}

	if counted || closeCode != 0 {
		select {
		case c.out <- f:
			return nil
		case <-c.ctx.Done():
			release()
			return domain.ErrTransportClosed
		}
	}
	select {
	case c.out <- f:
		return nil
	default:
		return errQueueFull
	}
}

func (c *conn) writeLoop() {
	defer close(c.writerDone)
	for {
		select {
		case <-c.ctx.Done():
			return
		case f := <-c.out:
			if c.closed.Load() {
				return
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.g.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, f.payload); err != nil {
				c.log.Debug().Err(err).Msg("write failed")
				c.closeWith(websocket.CloseAbnormalClosure, "")
				return
			}
			metrics.IncFrameSent(f.kind)
			if f.counted {
				c.pending.Add(-1)
			}
			if f.closeCode != 0 {
				c.closeWith(f.closeCode, "")
				return
			}
		}
	}
}

// closeWith starts the close handshake: no frame is written after it, the
// in-flight turn is cancelled and the reader waits briefly for the peer's
// close reply before the transport is dropped.
func (c *conn) closeWith(code int, reason string) {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		deadline := time.Now().Add(closeGrace)
		if code != websocket.CloseAbnormalClosure {
			_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		}
		_ = c.ws.SetReadDeadline(deadline)
		c.cancel()
	})
}

func (c *conn) teardown() {
	c.teardownOnce.Do(func() {
		c.closed.Store(true)
		c.cancel()
		_ = c.ws.Close()
		if err := c.sess.Close(); err != nil {
			c.log.Debug().Err(err).Msg("session already closed")
		}
		metrics.SessionClosed()
		c.persistClose()
		c.log.Info().Int("turns", len(c.sess.History())).Msg("session closed")
	})
}
