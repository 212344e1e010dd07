// File: internal/infra/adapters/ai/multi_adapter.go
package ai

import (
	"context"
	"sort"
	"strings"
	"time"

	"asistente-tienda/internal/domain"
	"asistente-tienda/internal/domain/ports/adapter"
	"asistente-tienda/internal/infra/metrics"

	"github.com/rs/zerolog"
)

var _ adapter.LLMClient = (*MultiLLM)(nil)

// MultiLLM routes each request to a provider by model name and fails over
// to the remaining providers when the chosen one is unavailable or out of
// quota. Timeouts are not retried: the deadline is already spent.
type MultiLLM struct {
	defaultProvider string // e.g., "openai" or "gemini"
	byProvider      map[string]adapter.LLMClient
	modelToProvider map[string]string // model -> provider ("openai" | "gemini")
	log             *zerolog.Logger
}

// NewMultiLLM does not inject any default model; it only knows a default provider.
// Each provider adapter is responsible for its own default model.
func NewMultiLLM(
	defaultProvider string,
	byProvider map[string]adapter.LLMClient,
	modelToProvider map[string]string,
	log *zerolog.Logger,
) *MultiLLM {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &MultiLLM{
		defaultProvider: strings.ToLower(defaultProvider),
		byProvider:      byProvider,
		modelToProvider: modelToProvider,
		log:             log,
	}
}

// Providers lists configured provider names.
func (m *MultiLLM) Providers() []string {
	out := make([]string, 0, len(m.byProvider))
	for p, c := range m.byProvider {
		if c != nil {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

func (m *MultiLLM) resolveProvider(model string) string {
	if p := m.modelToProvider[model]; p != "" {
		return strings.ToLower(p)
	}
	l := strings.ToLower(model)
	switch {
	case strings.HasPrefix(l, "gemini"):
		return ProviderGemini
	case strings.HasPrefix(l, "gpt"), strings.HasPrefix(l, "o1"), strings.HasPrefix(l, "o3"):
		return ProviderOpenAI
	default:
		return m.defaultProvider
	}
}

// order returns the routed provider first, then the others by name.
func (m *MultiLLM) order(model string) []string {
	first := m.resolveProvider(model)
	out := make([]string, 0, len(m.byProvider))
	if m.byProvider[first] != nil {
		out = append(out, first)
	}
	for _, p := range m.Providers() {
		if p != first {
			out = append(out, p)
		}
	}
	return out
}

func (m *MultiLLM) Complete(ctx context.Context, req adapter.CompletionRequest) (adapter.Completion, error) {
	providers := m.order(req.Model)
	if len(providers) == 0 {
		return adapter.Completion{}, domain.ErrLLMUnavailable
	}

	var lastErr error
	for i, p := range providers {
		r := req
		if i > 0 {
			// a model name only means something to the provider it routed to
			r.Model = ""
		}
		comp, err := m.call(ctx, p, r)
		if err == nil {
			return comp, nil
		}
		lastErr = err
		if !failoverable(err) || ctx.Err() != nil {
			break
		}
		if i+1 < len(providers) {
			m.log.Warn().Err(err).Str("provider", p).Str("next", providers[i+1]).Msg("llm failover")
		}
	}
	return adapter.Completion{}, lastErr
}

func (m *MultiLLM) call(ctx context.Context, provider string, req adapter.CompletionRequest) (adapter.Completion, error) {
	start := time.Now()
	comp, err := m.byProvider[provider].Complete(ctx, req)
	if err != nil {
		err = classify(provider, 0, err)
	}
	res := outcome(err)
	if err == nil && strings.TrimSpace(comp.Text) == "" {
		res = outcomeEmpty
	}
	metrics.ObserveLLMCall(provider, res, time.Since(start).Milliseconds())
	if err == nil {
		if comp.Provider == "" {
			comp.Provider = provider
		}
		metrics.ObserveLLMUsage(provider, comp.Model, comp.Usage.PromptTokens, comp.Usage.CompletionTokens)
	}
	return comp, err
}
