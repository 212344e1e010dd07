package redis

import (
	"context"
	"encoding/json"
	"time"

	"asistente-tienda/internal/domain/ports/adapter"
)

// ReplyCache stores LLM completions by request fingerprint.
type ReplyCache struct {
	client RedisClient
	ttl    time.Duration
}

func NewReplyCache(client RedisClient, ttl time.Duration) *ReplyCache {
	return &ReplyCache{
		client: client,
		ttl:    ttl,
	}
}

func replyKey(fingerprint string) string { return "llm_reply:" + fingerprint }

// Get returns (completion, true, nil) on a hit and (zero, false, nil) on a miss.
func (c *ReplyCache) Get(ctx context.Context, fingerprint string) (adapter.Completion, bool, error) {
	data, err := c.client.Get(ctx, replyKey(fingerprint))
	if err != nil {
		if IsMiss(err) {
			return adapter.Completion{}, false, nil
		}
		return adapter.Completion{}, false, err
	}
	var comp adapter.Completion
	if err := json.Unmarshal([]byte(data), &comp); err != nil {
		// unreadable entries count as a miss and get overwritten
		return adapter.Completion{}, false, nil
	}
	return comp, true, nil
}

func (c *ReplyCache) Put(ctx context.Context, fingerprint string, comp adapter.Completion) error {
	data, err := json.Marshal(comp)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, replyKey(fingerprint), data, c.ttl)
}
