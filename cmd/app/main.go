// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"asistente-tienda/internal/catalog"
	"asistente-tienda/internal/config"
	"asistente-tienda/internal/domain/ports/adapter"
	"asistente-tienda/internal/domain/ports/repository"
	"asistente-tienda/internal/infra/adapters/ai"
	"asistente-tienda/internal/infra/api"
	"asistente-tienda/internal/infra/db/memory"
	pg "asistente-tienda/internal/infra/db/postgres"
	"asistente-tienda/internal/infra/i18n"
	"asistente-tienda/internal/infra/logging"
	"asistente-tienda/internal/infra/metrics"
	red "asistente-tienda/internal/infra/redis"
	"asistente-tienda/internal/infra/scheduler"
	"asistente-tienda/internal/infra/security"
	"asistente-tienda/internal/infra/worker"
	"asistente-tienda/internal/infra/ws"
	"asistente-tienda/internal/knowledge"
	"asistente-tienda/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg *config.Config, logger *zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit, cfg.Store.Name)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("development mode enabled")
	}

	// ---- Postgres (optional) ----
	var pool *pgxpool.Pool
	if cfg.Catalog.Source == "postgres" || cfg.Database.PersistTranscripts {
		p, err := pg.Connect(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer p.Close()
		pool = p
	}
	return serve(ctx, cfg, pool, logger)
}

func serve(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, logger *zerolog.Logger) error {
	// ---- Catalog ----
	var source repository.ProductSource
	switch cfg.Catalog.Source {
	case "postgres":
		source = pg.NewProductRepo(pool)
	default:
		mem, err := memory.LoadFixtures(cfg.Catalog.FixturesPath)
		if err != nil {
			return fmt.Errorf("catalog fixtures: %w", err)
		}
		source = mem
	}
	products, err := catalog.Load(ctx, source, cfg.Assistant.ProductCap)
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	logger.Info().Int("products", products.Len()).Str("source", cfg.Catalog.Source).Msg("catalog loaded")

	// ---- Knowledge ----
	kopts := knowledge.Options{
		Dir:     cfg.Knowledge.Dir,
		Cap:     cfg.Assistant.KnowledgeCap,
		Bundled: cfg.BundledKnowledge(),
	}
	if cfg.Knowledge.PDFServiceURL != "" {
		kopts.PDF = knowledge.NewPDFService(cfg.Knowledge.PDFServiceURL)
	}
	base, err := knowledge.Build(ctx, kopts, logger)
	if err != nil {
		return fmt.Errorf("knowledge: %w", err)
	}
	kb := knowledge.NewHolder(base)
	logger.Info().Int("passages", base.Len()).Msg("knowledge loaded")
	if cfg.Knowledge.Watch && cfg.Knowledge.Dir != "" {
		go func() {
			if err := knowledge.Watch(ctx, kb, kopts, logger); err != nil {
				logger.Error().Err(err).Msg("knowledge watcher stopped")
			}
		}()
	}

	// ---- Periodic jobs ----
	jobs := scheduler.New(10*time.Second, logger)
	if pool != nil {
		jobs.Every("db_pool_stats", 15*time.Second, pg.PoolStats(pool))
	}
	jobs.Every("knowledge_passages", time.Minute, func(context.Context) error {
		metrics.SetKnowledgePassages(kb.Current().Len())
		return nil
	})
	jobs.Start(ctx)
	defer jobs.Stop()

	// ---- Redis (optional) ----
	var rdb red.RedisClient
	if cfg.Redis.URL != "" {
		c, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer c.Close()
		rdb = c
	}

	// ---- LLM ----
	llm, model, err := buildLLM(ctx, cfg, rdb, logger)
	if err != nil {
		return err
	}

	// ---- Responder ----
	tr, err := i18n.Default()
	if err != nil {
		return fmt.Errorf("i18n: %w", err)
	}
	responder := usecase.NewResponderUseCase(products, kb, llm, tr, usecase.ResponderConfig{
		StoreName:         cfg.Store.Name,
		Model:             model,
		LLMTimeout:        cfg.Assistant.LLMTimeout,
		MaxOutputTokens:   cfg.Assistant.MaxOutputTokens,
		Temperature:       *cfg.Assistant.Temperature,
		MaxUtteranceBytes: cfg.Assistant.MaxUtteranceBytes,
	}, logger)

	// ---- Gateway ----
	var opts []ws.Option
	var transcripts *pg.TranscriptRepo
	if rdb != nil {
		opts = append(opts, ws.WithRateLimiter(red.NewRateLimiter(rdb),
			cfg.Redis.RateLimit.Messages, cfg.Redis.RateLimit.Window))
	}
	if cfg.Database.PersistTranscripts {
		var sealer pg.ContentSealer
		if cfg.Database.TranscriptKey != "" {
			enc, err := security.NewEncryptionService(cfg.Database.TranscriptKey)
			if err != nil {
				return fmt.Errorf("transcript key: %w", err)
			}
			sealer = enc
		}
		writers := worker.NewPool(cfg.Database.Workers, logger)
		writers.Start(ctx)
		// deferred so it runs after gateway.Shutdown has queued the close rows
		defer writers.Stop()
		transcripts = pg.NewTranscriptRepo(pool, sealer)
		opts = append(opts, ws.WithTranscripts(transcripts, writers))
	}
	gateway := ws.NewGateway(responder, tr, ws.Config{
		HistoryDepth:      cfg.Assistant.HistoryDepth,
		ContextDepth:      cfg.Assistant.ContextDepth,
		OutboundBuffer:    cfg.Assistant.OutboundBuffer,
		MaxUtteranceBytes: cfg.Assistant.MaxUtteranceBytes,
		AllowedOrigins:    cfg.Server.AllowedOrigins,
		LogUtterances:     cfg.Runtime.Dev,
	}, logger, opts...)

	// ---- HTTP ----
	auth := api.NewAuthManager(cfg.Admin.APIKey, cfg.Admin.JWTSecret, !cfg.Runtime.Dev, cfg.Admin.SessionTTL)
	if auth == nil {
		logger.Info().Msg("admin.api_key not set; admin routes disabled")
	}
	deps := api.Deps{
		Catalog:   products,
		Knowledge: kb,
		Gateway:   gateway,
		Auth:      auth,
	}
	if transcripts != nil {
		deps.Transcripts = transcripts
	}
	srv := api.NewServer(deps, cfg.Server.RequestTimeout, logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Str("store", cfg.Store.Name).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	// ---- Graceful shutdown ----
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown requested")
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := gateway.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("gateway shutdown")
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	logger.Info().Msg("bye")
	return nil
}

// buildLLM assembles provider adapters, failover routing, the concurrency
// limit and the reply cache. It also returns the model the responder asks for.
func buildLLM(ctx context.Context, cfg *config.Config, rdb red.RedisClient, logger *zerolog.Logger) (adapter.LLMClient, string, error) {
	byProvider := map[string]adapter.LLMClient{}
	if cfg.AI.OpenAIKey != "" {
		oa, err := ai.NewOpenAIAdapter(cfg.AI.OpenAIKey, cfg.AI.OpenAIBaseURL, cfg.AI.DefaultModel, cfg.AI.CountTokens)
		if err != nil {
			return nil, "", fmt.Errorf("openai adapter: %w", err)
		}
		byProvider[ai.ProviderOpenAI] = oa
	}
	if cfg.AI.GeminiKey != "" {
		ga, err := ai.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, cfg.AI.GeminiModel)
		if err != nil {
			return nil, "", fmt.Errorf("gemini adapter: %w", err)
		}
		byProvider[ai.ProviderGemini] = ga
	}

	if cfg.AI.Provider == "none" || len(byProvider) == 0 {
		logger.Warn().Msg("no LLM provider configured; every reply uses the fallback")
		return ai.UnavailableLLM{}, "", nil
	}
	if _, ok := byProvider[cfg.AI.Provider]; !ok {
		return nil, "", fmt.Errorf("ai.provider %q has no api key", cfg.AI.Provider)
	}

	model := cfg.AI.DefaultModel
	if cfg.AI.Provider == ai.ProviderGemini {
		model = cfg.AI.GeminiModel
	}
	multi := ai.NewMultiLLM(cfg.AI.Provider, byProvider, map[string]string{
		cfg.AI.DefaultModel: ai.ProviderOpenAI,
		cfg.AI.GeminiModel:  ai.ProviderGemini,
	}, logger)
	logger.Info().Strs("providers", multi.Providers()).Str("default", cfg.AI.Provider).Str("model", model).Msg("llm ready")

	llm := ai.NewLimitedLLM(multi, cfg.AI.ConcurrentLimit)
	if rdb != nil {
		llm = ai.NewCachedLLM(llm, red.NewReplyCache(rdb, cfg.Redis.TTL), logger)
	}
	return llm, model, nil
}
