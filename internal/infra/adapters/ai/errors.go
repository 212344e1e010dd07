package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"asistente-tienda/internal/domain"
)

// Call outcomes, used as metric labels.
const (
	outcomeOK          = "ok"
	outcomeEmpty       = "empty"
	outcomeTimeout     = "timeout"
	outcomeQuota       = "quota"
	outcomeUnavailable = "unavailable"
)

// classify maps a provider failure onto one of the three LLM sentinels,
// keeping the original error in the chain.
func classify(provider string, status int, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, domain.ErrLLMTimeout),
		errors.Is(err, domain.ErrLLMQuota),
		errors.Is(err, domain.ErrLLMUnavailable):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: %w", provider, domain.ErrLLMTimeout, err)
	case status == 429 || looksLikeQuota(err.Error()):
		return fmt.Errorf("%s: %w: %w", provider, domain.ErrLLMQuota, err)
	default:
		return fmt.Errorf("%s: %w: %w", provider, domain.ErrLLMUnavailable, err)
	}
}

func looksLikeQuota(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "resource_exhausted") ||
		strings.Contains(m, "rate limit") ||
		strings.Contains(m, "quota")
}

func outcome(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, domain.ErrLLMTimeout):
		return outcomeTimeout
	case errors.Is(err, domain.ErrLLMQuota):
		return outcomeQuota
	default:
		return outcomeUnavailable
	}
}

// failoverable reports whether another provider is worth trying.
func failoverable(err error) bool {
	return errors.Is(err, domain.ErrLLMUnavailable) || errors.Is(err, domain.ErrLLMQuota)
}

func modelOrDefault(model, def string) string {
	if strings.TrimSpace(model) != "" {
		return model
	}
	return def
}
