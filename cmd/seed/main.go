package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"asistente-tienda/internal/config"
	"asistente-tienda/internal/infra/db/memory"
	pg "asistente-tienda/internal/infra/db/postgres"
	"asistente-tienda/internal/infra/logging"
	red "asistente-tienda/internal/infra/redis"
)

const seedLock = "seed:products"

func main() {
	fixtures := flag.String("fixtures", "", "product fixtures yaml (empty = bundled sample catalog)")

	// ---- Config ----
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)

	path := *fixtures
	if path == "" {
		path = cfg.Catalog.FixturesPath
	}
	if err := run(cfg, path, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed failed")
	}
}

func run(cfg *config.Config, fixtures string, logger *zerolog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	src, err := memory.LoadFixtures(fixtures)
	if err != nil {
		return fmt.Errorf("fixtures: %w", err)
	}
	products, err := src.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("fixtures: %w", err)
	}

	// Connect Postgres
	pool, err := pg.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	// Concurrent seeders (several replicas starting at once) take turns.
	if cfg.Redis.URL != "" {
		rc, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rc.Close()
		locker := red.NewLocker(rc)
		token, err := locker.TryLock(ctx, seedLock, time.Minute)
		if errors.Is(err, red.ErrLockHeld) {
			logger.Info().Msg("another seeder is running; nothing to do")
			return nil
		}
		if err != nil {
			return fmt.Errorf("seed lock: %w", err)
		}
		defer func() {
			if err := locker.Unlock(context.Background(), seedLock, token); err != nil {
				logger.Warn().Err(err).Msg("seed unlock")
			}
		}()
	}

	repo := pg.NewProductRepo(pool)
	if err := repo.UpsertAll(ctx, products); err != nil {
		return fmt.Errorf("upsert products: %w", err)
	}
	for _, p := range products {
		logger.Info().Int64("id", p.ID).Str("title", p.Title).Str("price", p.Price()).Bool("active", p.Active).Msg("seeded")
	}
	logger.Info().Int("products", len(products)).Msg("seeding complete")
	return nil
}
