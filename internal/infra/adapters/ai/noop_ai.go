package ai

import (
	"context"

	"asistente-tienda/internal/domain"
	"asistente-tienda/internal/domain/ports/adapter"
)

var _ adapter.LLMClient = UnavailableLLM{}

// UnavailableLLM stands in when no provider is configured. Every call fails
// with domain.ErrLLMUnavailable, so every turn takes the deterministic
// fallback.
type UnavailableLLM struct{}

func (UnavailableLLM) Complete(ctx context.Context, _ adapter.CompletionRequest) (adapter.Completion, error) {
	if err := ctx.Err(); err != nil {
		return adapter.Completion{}, classify("none", 0, err)
	}
	return adapter.Completion{}, domain.ErrLLMUnavailable
}
