package model

import (
	"fmt"
	"sync"
	"time"

	"asistente-tienda/internal/domain"
)

type ChatSessionState string

const (
	ChatSessionInit    ChatSessionState = "init"
	ChatSessionGreeted ChatSessionState = "greeted"
	ChatSessionActive  ChatSessionState = "active"
	ChatSessionClosed  ChatSessionState = "closed"
)

// DefaultHistoryDepth is how many exchanges a session remembers.
const DefaultHistoryDepth = 8

// ChatSession is the server-side state of one support connection.
// It is shared between the connection's reader, turn worker and the
// diagnostics endpoint, so every accessor locks.
type ChatSession struct {
	ID            string
	Client        string
	EstablishedAt time.Time

	mu           sync.Mutex
	state        ChatSessionState
	lastActivity time.Time
	history      []Exchange
	depth        int
}

func NewChatSession(id, client string, depth int) *ChatSession {
	if depth <= 0 {
		depth = DefaultHistoryDepth
	}
	now := time.Now().UTC()
	return &ChatSession{
		ID:            id,
		Client:        client,
		EstablishedAt: now,
		state:         ChatSessionInit,
		lastActivity:  now,
		history:       make([]Exchange, 0, depth),
		depth:         depth,
	}
}

func (s *ChatSession) State() ChatSessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *ChatSession) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Greet moves Init -> Greeted once the welcome frame is queued.
func (s *ChatSession) Greet() error {
	return s.transition(ChatSessionGreeted)
}

// Record appends a finished exchange, moving Greeted/Active -> Active and
// trimming history to the configured depth.
func (s *ChatSession) Record(ex Exchange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(ChatSessionActive); err != nil {
		return err
	}
	s.state = ChatSessionActive
	if ex.At.IsZero() {
		ex.At = time.Now().UTC()
	}
	s.lastActivity = ex.At
	s.history = append(s.history, ex)
	if over := len(s.history) - s.depth; over > 0 {
		s.history = append(s.history[:0:0], s.history[over:]...)
	}
	return nil
}

// Touch marks inbound activity without changing state.
func (s *ChatSession) Touch() {
	s.mu.Lock()
	s.lastActivity = time.Now().UTC()
	s.mu.Unlock()
}

// Close is legal from every non-closed state.
func (s *ChatSession) Close() error {
	return s.transition(ChatSessionClosed)
}

func (s *ChatSession) IsClosed() bool { return s.State() == ChatSessionClosed }

// History returns a copy of all remembered exchanges, oldest first.
func (s *ChatSession) History() []Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Exchange, len(s.history))
	copy(out, s.history)
	return out
}

// Recent returns a copy of the last n exchanges, oldest first.
func (s *ChatSession) Recent(n int) []Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.history
	if n >= 0 && len(h) > n {
		h = h[len(h)-n:]
	}
	out := make([]Exchange, len(h))
	copy(out, h)
	return out
}

func (s *ChatSession) transition(to ChatSessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(to); err != nil {
		return err
	}
	s.state = to
	return nil
}

func (s *ChatSession) checkLocked(to ChatSessionState) error {
	ok := false
	switch s.state {
	case ChatSessionInit:
		ok = to == ChatSessionGreeted || to == ChatSessionClosed
	case ChatSessionGreeted, ChatSessionActive:
		ok = to == ChatSessionActive || to == ChatSessionClosed
	}
	if !ok {
		return fmt.Errorf("%s -> %s: %w", s.state, to, domain.ErrIllegalTransition)
	}
	return nil
}
