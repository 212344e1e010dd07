package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"asistente-tienda/internal/domain/ports/adapter"
	"asistente-tienda/internal/infra/metrics"

	"github.com/rs/zerolog"
)

const replyCacheName = "llm_reply"

// ReplyStore is satisfied by redis.ReplyCache.
type ReplyStore interface {
	Get(ctx context.Context, fingerprint string) (adapter.Completion, bool, error)
	Put(ctx context.Context, fingerprint string, comp adapter.Completion) error
}

var _ adapter.LLMClient = (*CachedLLM)(nil)

// CachedLLM answers repeated identical prompts from the store. Store
// failures degrade to a plain call.
type CachedLLM struct {
	inner adapter.LLMClient
	store ReplyStore
	log   *zerolog.Logger
}

func NewCachedLLM(inner adapter.LLMClient, store ReplyStore, log *zerolog.Logger) *CachedLLM {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &CachedLLM{inner: inner, store: store, log: log}
}

// Fingerprint identifies a request by everything that shapes its output.
func Fingerprint(req adapter.CompletionRequest) string {
	h := sha256.New()
	h.Write([]byte(req.Model))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(req.MaxTokens)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatFloat(req.Temperature, 'f', -1, 64)))
	h.Write([]byte{0})
	h.Write([]byte(req.Prompt))
	return hex.EncodeToString(h.Sum(nil))
}

func (c *CachedLLM) Complete(ctx context.Context, req adapter.CompletionRequest) (adapter.Completion, error) {
	fp := Fingerprint(req)

	comp, hit, err := c.store.Get(ctx, fp)
	switch {
	case err != nil:
		metrics.IncCacheRequest(replyCacheName, "error")
		c.log.Warn().Err(err).Msg("reply cache read failed")
	case hit:
		metrics.IncCacheRequest(replyCacheName, "hit")
		return comp, nil
	default:
		metrics.IncCacheRequest(replyCacheName, "miss")
	}

	comp, err = c.inner.Complete(ctx, req)
	if err != nil {
		return comp, err
	}
	if strings.TrimSpace(comp.Text) != "" {
		if perr := c.store.Put(ctx, fp, comp); perr != nil {
			c.log.Warn().Err(perr).Msg("reply cache write failed")
		}
	}
	return comp, nil
}
