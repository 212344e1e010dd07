package ws

import (
	"context"
	"errors"
	"time"

	"asistente-tienda/internal/domain"
	"asistente-tienda/internal/domain/ports/repository"
	"asistente-tienda/internal/infra/metrics"
)

const transcriptTimeout = 5 * time.Second

// persist runs fn on the background pool. Transcript writes are
// best-effort: a full queue drops them.
func (c *conn) persist(fn func(ctx context.Context, repo repository.TranscriptRepository) error) {
	if c.g.transcripts == nil || c.g.jobs == nil {
		return
	}
	repo := c.g.transcripts
	err := c.g.jobs.Submit(func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, transcriptTimeout)
		defer cancel()
		return fn(ctx, repo)
	})
	if err != nil {
		metrics.IncTranscriptWrite("dropped")
		c.log.Debug().Err(err).Msg("transcript write dropped")
	}
}

func (c *conn) persistOpen() {
	id, client, at := c.sess.ID, c.sess.Client, c.sess.EstablishedAt
	c.persist(func(ctx context.Context, repo repository.TranscriptRepository) error {
		return repo.OpenChat(ctx, id, client, at)
	})
}

func (c *conn) persistTurn(utterance string, receivedAt time.Time, reply string, repliedAt time.Time, intent string) {
	id, client, opened := c.sess.ID, c.sess.Client, c.sess.EstablishedAt
	msgs := []repository.TranscriptMessage{
		{SessionID: id, Role: repository.RoleUser, Content: utterance, Intent: intent, At: receivedAt},
		{SessionID: id, Role: repository.RoleAssistant, Content: reply, Intent: intent, At: repliedAt},
	}
	c.persist(func(ctx context.Context, repo repository.TranscriptRepository) error {
		for _, m := range msgs {
			err := repo.SaveMessage(ctx, m)
			if errors.Is(err, domain.ErrNotFound) {
				// the open task has not run yet
				if err = repo.OpenChat(ctx, id, client, opened); err == nil {
					err = repo.SaveMessage(ctx, m)
				}
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *conn) persistClose() {
	id, client, opened := c.sess.ID, c.sess.Client, c.sess.EstablishedAt
	at := time.Now().UTC()
	c.persist(func(ctx context.Context, repo repository.TranscriptRepository) error {
		err := repo.CloseChat(ctx, id, at)
		if errors.Is(err, domain.ErrNotFound) {
			if err = repo.OpenChat(ctx, id, client, opened); err == nil {
				err = repo.CloseChat(ctx, id, at)
			}
		}
		return err
	})
}
