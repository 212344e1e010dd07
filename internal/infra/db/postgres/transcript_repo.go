package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"asistente-tienda/internal/domain"
	"asistente-tienda/internal/domain/ports/repository"
	"asistente-tienda/internal/infra/metrics"
)

var _ repository.TranscriptRepository = (*TranscriptRepo)(nil)

// ContentSealer protects message content at rest.
type ContentSealer interface {
	Seal(plaintext string) (string, error)
	Open(stored string) (string, error)
}

// TranscriptRepo persists support chats and their messages.
type TranscriptRepo struct {
	pool   *pgxpool.Pool
	sealer ContentSealer // nil stores plaintext
}

func NewTranscriptRepo(pool *pgxpool.Pool, sealer ContentSealer) *TranscriptRepo {
	return &TranscriptRepo{pool: pool, sealer: sealer}
}

func (r *TranscriptRepo) OpenChat(ctx context.Context, sessionID, client string, at time.Time) error {
	const q = `
INSERT INTO chats (id, client, opened_at)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO NOTHING;`
	_, err := r.pool.Exec(ctx, q, sessionID, client, at)
	return record("open", err)
}

func (r *TranscriptRepo) CloseChat(ctx context.Context, sessionID string, at time.Time) error {
	const q = `UPDATE chats SET closed_at = $2 WHERE id = $1 AND closed_at IS NULL;`
	tag, err := r.pool.Exec(ctx, q, sessionID, at)
	if err == nil && tag.RowsAffected() == 0 {
		err = domain.ErrNotFound
	}
	return record("close", err)
}

func (r *TranscriptRepo) SaveMessage(ctx context.Context, m repository.TranscriptMessage) error {
	const q = `
INSERT INTO chat_messages (chat_id, role, content, intent, created_at)
VALUES ($1, $2, $3, $4, $5);`
	at := m.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	content := m.Content
	if r.sealer != nil {
		sealed, err := r.sealer.Seal(content)
		if err != nil {
			return record("message", fmt.Errorf("seal: %w", err))
		}
		content = sealed
	}
	_, err := r.pool.Exec(ctx, q, m.SessionID, string(m.Role), content, m.Intent, at)
	if pgCode(err) == pgForeignKeyViolation {
		err = fmt.Errorf("chat %s: %w", m.SessionID, domain.ErrNotFound)
	}
	return record("message", err)
}

func (r *TranscriptRepo) ListMessages(ctx context.Context, sessionID string) ([]repository.TranscriptMessage, error) {
	const q = `
SELECT chat_id, role, content, intent, created_at
  FROM chat_messages
 WHERE chat_id = $1
 ORDER BY created_at ASC, id ASC;`
	rows, err := r.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []repository.TranscriptMessage
	for rows.Next() {
		var m repository.TranscriptMessage
		var role string
		if err := rows.Scan(&m.SessionID, &role, &m.Content, &m.Intent, &m.At); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Role = repository.TranscriptRole(role)
		if r.sealer != nil {
			if m.Content, err = r.sealer.Open(m.Content); err != nil {
				return nil, fmt.Errorf("open message: %w", err)
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func record(op string, err error) error {
	if err != nil {
		metrics.IncTranscriptWrite("error")
		return fmt.Errorf("transcript %s: %w", op, err)
	}
	metrics.IncTranscriptWrite("ok")
	return nil
}
