package main

import (
	"context"
	"flag"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"posterforge/internal/credits"
	"posterforge/internal/domain"
	"posterforge/internal/infra"
)

// creditgrant is the operator tool for topping up a user's credit counters,
// normally driven by the payment provider's webhook delivery log. The event
// id is the idempotency key: replaying the same grant is a no-op.
func main() {
	var (
		userID  = flag.String("user", "", "user id to credit")
		counter = flag.String("counter", string(domain.CreditPosterGeneration), "counter to credit (poster_generation, ai_identification, registry_lookup)")
		amount  = flag.Int("amount", 1, "number of credits to add")
		eventID = flag.String("event", "", "idempotency key for this grant (defaults to a fresh uuid)")
	)
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	if *userID == "" {
		logger.Fatal().Msg("creditgrant: -user is required")
	}
	if *eventID == "" {
		*eventID = uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("creditgrant: failed to connect database")
	}
	defer pool.Close()

	ledger := credits.NewLedger(infra.NewSQLRunner(pool, logger))

	applied, err := ledger.Grant(ctx, *userID, domain.CreditCounter(*counter), *amount, *eventID)
	if err != nil {
		logger.Fatal().Err(err).Msg("creditgrant: grant failed")
	}
	if !applied {
		logger.Warn().Str("event_id", *eventID).Msg("creditgrant: grant already applied, balance unchanged")
		return
	}

	balance, err := ledger.Balance(ctx, *userID, domain.CreditCounter(*counter))
	if err != nil {
		logger.Fatal().Err(err).Msg("creditgrant: failed to read balance")
	}
	logger.Info().
		Str("user_id", *userID).
		Str("counter", *counter).
		Int("amount", *amount).
		Int("balance", balance).
		Str("event_id", *eventID).
		Msg("creditgrant: credits granted")
}
