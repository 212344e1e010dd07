// File: internal/usecase/responder_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"asistente-tienda/internal/domain"
	"asistente-tienda/internal/domain/model"
	"asistente-tienda/internal/domain/ports/adapter"
	"asistente-tienda/internal/infra/i18n"
	"asistente-tienda/internal/infra/logging"
)

var (
	ErrEmptyUtterance   = fmt.Errorf("empty utterance: %w", domain.ErrInvalidInput)
	ErrUtteranceTooLong = fmt.Errorf("utterance too long: %w", domain.ErrInvalidInput)
)

const (
	DefaultMaxUtteranceBytes = 4096
	DefaultLLMTimeout        = 15 * time.Second
	DefaultMaxOutputTokens   = 512

	productRetrieval  = 5
	passageRetrieval  = 3
	otherRetrieval    = 3
	maxRecommendation = 5
)

// Fallback causes reported on Reply.FallbackReason.
const (
	FallbackTimeout     = "timeout"
	FallbackQuota       = "quota"
	FallbackUnavailable = "unavailable"
	FallbackEmpty       = "empty"
	FallbackError       = "error"
)

// ProductSearcher is the catalog view the responder needs.
type ProductSearcher interface {
	Search(query string, limit int) []model.Product
	TitleTerms() []string
}

// PassageSearcher is the knowledge view the responder needs.
type PassageSearcher interface {
	Search(query string, limit int) []model.Passage
}

type TurnInput struct {
	Utterance string
	Context   []model.Exchange
}

type Reply struct {
	Text            string
	Recommendations []model.Recommendation
	Sources         []string
	Intent          model.Intent
	Fallback        bool
	FallbackReason  string
	Turn            model.TurnRecord
}

type ResponderConfig struct {
	StoreName         string
	Model             string
	LLMTimeout        time.Duration
	MaxOutputTokens   int
	Temperature       float64
	MaxUtteranceBytes int
}

// Compile-time check
var _ ResponderUseCase = (*responderUC)(nil)

type ResponderUseCase interface {
	// Respond answers one utterance. It fails only on invalid input or when
	// ctx is cancelled; model failures turn into a fallback reply.
	Respond(ctx context.Context, in TurnInput) (*Reply, error)
}

type responderUC struct {
	catalog   ProductSearcher
	knowledge PassageSearcher
	llm       adapter.LLMClient
	tr        *i18n.Translator
	sniffer   *IntentSniffer
	cfg       ResponderConfig
	log       *zerolog.Logger
	now       func() time.Time
}

func NewResponderUseCase(
	catalog ProductSearcher,
	knowledge PassageSearcher,
	llm adapter.LLMClient,
	tr *i18n.Translator,
	cfg ResponderConfig,
	logger *zerolog.Logger,
) *responderUC {
	if cfg.LLMTimeout <= 0 {
		cfg.LLMTimeout = DefaultLLMTimeout
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = DefaultMaxOutputTokens
	}
	if cfg.MaxUtteranceBytes <= 0 {
		cfg.MaxUtteranceBytes = DefaultMaxUtteranceBytes
	}
	l := logger.With().Str("component", "responder").Logger()
	return &responderUC{
		catalog:   catalog,
		knowledge: knowledge,
		llm:       llm,
		tr:        tr,
		sniffer:   NewIntentSniffer(catalog.TitleTerms()),
		cfg:       cfg,
		log:       &l,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Validate trims the utterance and checks its size.
func Validate(utterance string, maxBytes int) (string, error) {
	u := strings.TrimSpace(utterance)
	if u == "" {
		return "", ErrEmptyUtterance
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUtteranceBytes
	}
	if len(u) > maxBytes {
		return "", ErrUtteranceTooLong
	}
	return u, nil
}

func (r *responderUC) Respond(ctx context.Context, in TurnInput) (*Reply, error) {
	utterance, err := Validate(in.Utterance, r.cfg.MaxUtteranceBytes)
	if err != nil {
		return nil, err
	}
	log := logging.With(ctx, r.log)
	defer logging.TraceDuration(log, "Responder.Respond")()

	history := in.Context
	if len(history) > maxContextTurns {
		history = history[len(history)-maxContextTurns:]
	}

	intent := r.sniffer.Classify(utterance)
	passages, products := r.retrieve(intent, utterance)

	prompt := buildPrompt(r.tr, r.cfg.StoreName, passages, products, history, utterance)
	text, reason, err := r.generate(ctx, prompt.Text)
	if err != nil {
		// session went away; nobody is waiting for this reply
		return nil, err
	}
	fallback := reason != ""
	if fallback {
		text = fallbackReply(r.tr, r.cfg.StoreName, intent, passages, products)
	}

	recs := r.recommend(intent, products)
	sources := make([]string, len(passages))
	for i, p := range passages {
		sources[i] = p.ID
	}
	productRefs := make([]int64, len(products))
	for i, p := range products {
		productRefs[i] = p.ID
	}

	log.Debug().
		Str("intent", intent.String()).
		Int("passages", len(passages)).
		Int("products", len(products)).
		Int("prompt_bytes", len(prompt.Text)).
		Bool("fallback", fallback).
		Str("fallback_reason", reason).
		Msg("turn answered")

	return &Reply{
		Text:            text,
		Recommendations: recs,
		Sources:         sources,
		Intent:          intent,
		Fallback:        fallback,
		FallbackReason:  reason,
		Turn: model.TurnRecord{
			Inbound:         utterance,
			Intent:          intent,
			PassageRefs:     sources,
			ProductRefs:     productRefs,
			Outbound:        text,
			Recommendations: recs,
			Fallback:        fallback,
			Timestamp:       r.now(),
		},
	}, nil
}

func (r *responderUC) retrieve(intent model.Intent, utterance string) ([]model.Passage, []model.Product) {
	var passages []model.Passage
	var products []model.Product
	switch intent {
	case model.IntentProduct, model.IntentPrice:
		products = r.catalog.Search(utterance, productRetrieval)
	case model.IntentPolicy, model.IntentOrder:
		passages = r.knowledge.Search(utterance, passageRetrieval)
	case model.IntentOther:
		passages = r.knowledge.Search(utterance, otherRetrieval)
		products = r.catalog.Search(utterance, otherRetrieval)
	}
	return passages, products
}

func (r *responderUC) recommend(intent model.Intent, products []model.Product) []model.Recommendation {
	recs := []model.Recommendation{}
	switch intent {
	case model.IntentProduct, model.IntentPrice, model.IntentOther:
	default:
		return recs
	}
	reason := recommendationReason(r.tr, intent)
	for i, p := range products {
		if i == maxRecommendation {
			break
		}
		recs = append(recs, model.NewRecommendation(p, reason))
	}
	return recs
}

type completionResult struct {
	c   adapter.Completion
	err error
}

// generate calls the model under the per-turn budget. A non-empty reason
// means the caller must use the fallback template. The deadline is enforced
// here as well, so a client that ignores cancellation cannot stall a turn.
// An error is returned only when the parent ctx is done.
func (r *responderUC) generate(ctx context.Context, prompt string) (string, string, error) {
	cctx, cancel := context.WithTimeout(ctx, r.cfg.LLMTimeout)
	defer cancel()

	ch := make(chan completionResult, 1)
	go func() {
		c, err := r.llm.Complete(cctx, adapter.CompletionRequest{
			Prompt:      prompt,
			Model:       r.cfg.Model,
			MaxTokens:   r.cfg.MaxOutputTokens,
			Temperature: r.cfg.Temperature,
		})
		ch <- completionResult{c: c, err: err}
	}()

	var res completionResult
	select {
	case res = <-ch:
	case <-cctx.Done():
		if err := ctx.Err(); err != nil {
			return "", "", err
		}
		r.log.Warn().Dur("budget", r.cfg.LLMTimeout).Msg("llm call timed out")
		return "", FallbackTimeout, nil
	}

	if res.err != nil {
		if err := ctx.Err(); err != nil {
			return "", "", err
		}
		reason := classifyFailure(res.err)
		r.log.Warn().Err(res.err).Str("reason", reason).Msg("llm call failed; using fallback")
		return "", reason, nil
	}
	text := strings.TrimSpace(res.c.Text)
	if text == "" {
		return "", FallbackEmpty, nil
	}
	return text, "", nil
}

func classifyFailure(err error) string {
	switch {
	case errors.Is(err, domain.ErrLLMTimeout), errors.Is(err, context.DeadlineExceeded):
		return FallbackTimeout
	case errors.Is(err, domain.ErrLLMQuota):
		return FallbackQuota
	case errors.Is(err, domain.ErrLLMUnavailable):
		return FallbackUnavailable
	}
	return FallbackError
}
