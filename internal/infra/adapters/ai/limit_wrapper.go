package ai

import (
	"context"
	"fmt"

	"asistente-tienda/internal/domain"
	"asistente-tienda/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.LLMClient = (*limitedLLM)(nil)

type limitedLLM struct {
	inner adapter.LLMClient
	sem   chan struct{}
}

// NewLimitedLLM caps in-flight calls. A caller waiting for a slot gives up
// when its context ends.
func NewLimitedLLM(inner adapter.LLMClient, maxConcurrent int) adapter.LLMClient {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedLLM{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedLLM) Complete(ctx context.Context, req adapter.CompletionRequest) (adapter.Completion, error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return adapter.Completion{}, fmt.Errorf("waiting for llm slot: %w: %w", domain.ErrLLMTimeout, ctx.Err())
	}
	defer func() { <-l.sem }()
	return l.inner.Complete(ctx, req)
}
