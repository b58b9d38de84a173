package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"posterforge/internal/credits"
	"posterforge/internal/domain"
	"posterforge/internal/infra"
	"posterforge/internal/posters"
	"posterforge/internal/render"
)

// Progress labels owned by the orchestrator. The render engine contributes
// its own phase labels between "Preparing canvas" and "Compressing image".
const (
	progressPreparing   = "Preparing canvas"
	progressCompressing = "Compressing image"
	progressUploading   = "Uploading poster"
)

// Compressor recompresses the rendered raster into the delivery envelope.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
}

// ArtifactStore persists the finished poster and returns its retrieval URL.
type ArtifactStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Orchestrator drives one claimed job to a terminal state. It is the only
// writer of status and progress after job creation, so a single job run has
// no write-write races to defend against.
type Orchestrator struct {
	store      *Store
	ledger     *credits.Ledger
	engine     render.Engine
	compressor Compressor
	artifacts  ArtifactStore
	posters    *posters.Store
	logger     infra.Logger

	// RunBudget bounds one whole job run wall-clock, independent of the
	// render engine's own poll deadline.
	RunBudget time.Duration

	// Authorize checks the identity assertion bound to the job. The default
	// accepts any job with an owner; deployments with signed job assertions
	// plug their verification in here.
	Authorize func(ctx context.Context, job domain.RenderJob) error
}

func NewOrchestrator(
	store *Store,
	ledger *credits.Ledger,
	engine render.Engine,
	compressor Compressor,
	artifacts ArtifactStore,
	posterStore *posters.Store,
	logger infra.Logger,
) *Orchestrator {
	return &Orchestrator{
		store:      store,
		ledger:     ledger,
		engine:     engine,
		compressor: compressor,
		artifacts:  artifacts,
		posters:    posterStore,
		logger:     logger,
		RunBudget:  120 * time.Second,
		Authorize: func(ctx context.Context, job domain.RenderJob) error {
			if job.UserID == "" {
				return domain.ErrUnauthorized
			}
			return nil
		},
	}
}

// Run executes the full pipeline for one claimed job. Every code path that
// enters Run leaves the job terminal: failures anywhere, including panics in
// an adapter, are converted to a terminal error record. Terminal writes use
// a context detached from the run budget so a deadline that killed the run
// cannot also suppress the terminal write. The credit debit is deliberately
// not refunded on downstream failure.
func (o *Orchestrator) Run(ctx context.Context, job domain.RenderJob) {
	runCtx := ctx
	var cancel context.CancelFunc
	if o.RunBudget > 0 {
		runCtx, cancel = context.WithTimeout(ctx, o.RunBudget)
		defer cancel()
	}

	var runErr error
	defer func() {
		if r := recover(); r != nil {
			runErr = fmt.Errorf("panic: %v", r)
		}
		if runErr == nil {
			return
		}
		o.logger.Error().Err(runErr).Str("job_id", job.ID).Str("user_id", job.UserID).Msg("job failed")
		writeCtx, writeCancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer writeCancel()
		if failErr := o.store.Fail(writeCtx, job.ID, userMessage(runErr)); failErr != nil {
			o.logger.Error().Err(failErr).Str("job_id", job.ID).Msg("terminal error write failed")
		}
	}()

	runErr = o.execute(runCtx, job)
	if runErr == nil {
		o.logger.Info().Str("job_id", job.ID).Str("user_id", job.UserID).Msg("job complete")
	}
}

func (o *Orchestrator) execute(ctx context.Context, job domain.RenderJob) error {
	if err := o.Authorize(ctx, job); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}

	o.progress(ctx, job.ID, progressPreparing)

	remaining, err := o.ledger.TryDebit(ctx, job.UserID, domain.CreditPosterGeneration)
	if err != nil {
		return err
	}
	o.logger.Debug().Str("job_id", job.ID).Int("remaining", remaining).Msg("poster credit consumed")

	raster, err := o.engine.Render(ctx, renderRequest(job), func(label string) {
		o.progress(ctx, job.ID, label)
	})
	if err != nil {
		return err
	}

	o.progress(ctx, job.ID, progressCompressing)
	compressed, err := o.compressor.Compress(raster)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrRenderFailed, err)
	}

	o.progress(ctx, job.ID, progressUploading)
	key := fmt.Sprintf("posters/%s/%s.jpg", job.UserID, job.ID)
	resultURL, err := o.artifacts.Put(ctx, key, compressed, "image/jpeg")
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUpload, err)
	}

	if _, err := o.posters.Record(ctx, domain.Poster{
		UserID:       job.UserID,
		JobID:        job.ID,
		ResultURL:    resultURL,
		UserImageURL: job.UserImageURL,
		TemplateID:   job.TemplateID,
		Description:  job.Description,
		Car:          job.Car,
	}); err != nil {
		return fmt.Errorf("%w: record poster: %v", domain.ErrUpload, err)
	}

	if err := o.store.Complete(ctx, job.ID, resultURL); err != nil {
		return err
	}
	return nil
}

// progress is best effort; a failed label write never aborts the render.
func (o *Orchestrator) progress(ctx context.Context, jobID, label string) {
	if err := o.store.SetProgress(ctx, jobID, label); err != nil {
		o.logger.Warn().Err(err).Str("job_id", jobID).Str("label", label).Msg("progress write failed")
	}
}

// renderRequest maps the job's input snapshot onto the engine contract. The
// current date is substituted at render time, not submission time.
func renderRequest(job domain.RenderJob) render.Request {
	texts := map[string]string{
		"make":        job.Car.Make,
		"model":       job.Car.Model,
		"year":        job.Car.Year,
		"description": job.Description,
		"instagram":   job.InstagramHandle,
		"date":        time.Now().Format("02.01.2006"),
	}
	return render.Request{
		TemplateURL:    job.PSDURL,
		UserImageURL:   job.UserImageURL,
		Texts:          texts,
		SupportedTexts: job.SupportedTexts,
		Fonts:          job.FontsUsed,
		HexColour:      job.HexColour,
		HexElements:    job.HexElements,
	}
}

// userMessage maps a pipeline failure to the short technical message stored
// on the job record.
func userMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrInsufficientCredit):
		return "no poster credits remaining"
	case errors.Is(err, domain.ErrRenderTimeout):
		return "render timed out"
	case errors.Is(err, domain.ErrRenderFailed):
		return "render failed"
	case errors.Is(err, domain.ErrUpload):
		return "could not store the finished poster"
	case errors.Is(err, context.DeadlineExceeded):
		return "job exceeded its time budget"
	default:
		return err.Error()
	}
}
