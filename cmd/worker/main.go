package main

import (
	"context"
	"errors"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"posterforge/internal/credits"
	"posterforge/internal/domain"
	"posterforge/internal/infra"
	"posterforge/internal/jobs"
	"posterforge/internal/posters"
	"posterforge/internal/postprocess"
	"posterforge/internal/render"
	"posterforge/internal/storage"
)

const (
	jobPollInterval   = 2 * time.Second
	maxConcurrentJobs = 2
)

// newArtifactStore prefers object storage when an endpoint is configured and
// falls back to the local filesystem store for development.
func newArtifactStore(ctx context.Context, cfg *infra.Config) (jobs.ArtifactStore, error) {
	if cfg.MinioEndpoint != "" {
		return storage.NewMinioStore(ctx, storage.MinioOptions{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
			BaseURL:   cfg.StorageBaseURL,
		})
	}
	return storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
}

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to connect database")
	}
	defer pool.Close()

	runner := infra.NewSQLRunner(pool, logger)

	engine, err := render.NewEditorEngine(render.Options{
		HostURL:      cfg.EditorHostURL,
		PollInterval: cfg.RenderPollInterval,
		PollTimeout:  cfg.RenderPollTimeout,
		Logger:       &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure render engine")
	}

	artifacts, err := newArtifactStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure artifact storage")
	}

	orch := jobs.NewOrchestrator(
		jobs.NewStore(runner),
		credits.NewLedger(runner),
		engine,
		postprocess.Compressor{},
		artifacts,
		posters.NewStore(runner),
		logger,
	)
	orch.RunBudget = cfg.JobRunBudget

	logger.Info().Dur("poll_interval", jobPollInterval).Msg("worker: started")
	runClaimLoop(ctx, jobs.NewStore(runner), orch, logger)
	logger.Info().Msg("worker: stopped")
}

// runClaimLoop polls for queued jobs and dispatches them to the orchestrator,
// at most maxConcurrentJobs at a time. Each claim is exclusive, so several
// worker processes can share one queue safely.
func runClaimLoop(ctx context.Context, store *jobs.Store, orch *jobs.Orchestrator, logger infra.Logger) {
	sem := make(chan struct{}, maxConcurrentJobs)
	var wg sync.WaitGroup

	ticker := time.NewTicker(jobPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case <-ticker.C:
		}

		// Drain the queue up to the concurrency cap before sleeping again.
		for {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				wg.Wait()
				return
			}

			job, err := store.Claim(ctx)
			if err != nil {
				<-sem
				if !errors.Is(err, domain.ErrNotFound) && ctx.Err() == nil {
					logger.Error().Err(err).Msg("worker: failed to claim job")
				}
				break
			}

			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() { <-sem }()
				orch.Run(ctx, job)
			}()
		}
	}
}
