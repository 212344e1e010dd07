package repository

import (
	"context"
	"time"
)

// -----------------------------
// Chat transcripts
// -----------------------------

type TranscriptRole string

const (
	RoleUser      TranscriptRole = "user"
	RoleAssistant TranscriptRole = "assistant"
)

// TranscriptMessage is one persisted chat line.
type TranscriptMessage struct {
	SessionID string
	Role      TranscriptRole
	Content   string
	Intent    string
	At        time.Time
}

// TranscriptRepository stores support chat transcripts. Writes are
// best-effort and happen off the turn path.
type TranscriptRepository interface {
	OpenChat(ctx context.Context, sessionID, client string, at time.Time) error
	CloseChat(ctx context.Context, sessionID string, at time.Time) error
	SaveMessage(ctx context.Context, msg TranscriptMessage) error
	ListMessages(ctx context.Context, sessionID string) ([]TranscriptMessage, error)
}
