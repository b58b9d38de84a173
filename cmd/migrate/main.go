package main

import (
	"context"
	"time"

	"github.com/joho/godotenv"

	"posterforge/internal/infra"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("migrate: failed to connect database")
	}
	defer pool.Close()

	if err := infra.RunMigrations(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("migrate: schema migration failed")
	}
	logger.Info().Msg("migrate: schema is up to date")
}
