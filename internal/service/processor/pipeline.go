package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/ifuryst/repurpose/internal/models"
	"github.com/ifuryst/repurpose/internal/service"
	"github.com/ifuryst/repurpose/internal/service/generator"
	"github.com/ifuryst/repurpose/internal/service/store"
)

const defaultProcessingSeconds = 60

// stageError remembers which pipeline stage failed
type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string { return e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

func fail(stage string, err error) error {
	return &stageError{stage: stage, err: err}
}

func (e *Engine) processJob(ctx context.Context, jobID uuid.UUID) {
	ctx, span := e.tracer.Start(ctx, "processor.job",
		trace.WithAttributes(attribute.String("job.id", jobID.String())))
	defer span.End()

	logger := e.logger.With(zap.String("job_id", jobID.String()))
	logger.Info("Processing job")

	err := e.runPipeline(ctx, jobID, logger)
	switch {
	case err == nil:
		e.completed.Add(1)
		logger.Info("Job completed")
	case errors.Is(err, store.ErrNotProcessing):
		e.cancelled.Add(1)
		span.AddEvent("job no longer processing")
		logger.Info("Job is no longer processing, stopping pipeline")
	default:
		e.failed.Add(1)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.markFailed(ctx, jobID, err, logger)
	}
}

func (e *Engine) runPipeline(ctx context.Context, jobID uuid.UUID, logger *zap.Logger) error {
	job, err := e.store.Jobs.Get(ctx, jobID)
	if err != nil {
		return fail("load", fmt.Errorf("failed to load job: %w", err))
	}
	// one output per platform, whatever the stored list repeats
	job.Platforms = uniquePlatforms(job.Platforms)

	content, err := e.store.Contents.Get(ctx, job.ContentID)
	if errors.Is(err, store.ErrNotFound) {
		return fail("load", fmt.Errorf("content not found: %s", job.ContentID))
	}
	if err != nil {
		return fail("load", fmt.Errorf("failed to load content: %w", err))
	}

	// model calls share one deadline, store writes do not
	genCtx := ctx
	if e.config.JobTimeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, e.config.JobTimeout)
		defer cancel()
	}

	if err := e.checkpoint(ctx, job.ID, 15, "Generating job title", nil); err != nil {
		return err
	}
	title := GenerateTitle(content.OriginalText, job.Platforms)
	logger.Debug("Generated job title", zap.String("title", title))

	if err := e.checkpoint(ctx, job.ID, 20, "Analyzing content", map[string]interface{}{"title": title}); err != nil {
		return err
	}
	analysis := e.analyze(genCtx, content, logger)

	results, err := e.generate(ctx, genCtx, job, content, analysis, logger)
	if err != nil {
		return err
	}

	if err := e.checkpoint(ctx, job.ID, 80, "Saving outputs", nil); err != nil {
		return err
	}

	var missing []string
	if e.config.PersistenceMode == PersistenceAtomic {
		err = e.saveAtomic(ctx, job, results)
	} else {
		missing = e.savePartial(ctx, job, results, logger)
	}
	if err != nil {
		return err
	}

	return e.finish(ctx, job, missing, logger)
}

func uniquePlatforms(platforms []string) []string {
	seen := make(map[string]bool, len(platforms))
	out := make([]string, 0, len(platforms))
	for _, p := range platforms {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func (e *Engine) checkpoint(ctx context.Context, jobID uuid.UUID, progress int, step string, extra map[string]interface{}) error {
	fields := map[string]interface{}{
		"progress_percentage": progress,
		"current_step":        step,
	}
	for k, v := range extra {
		fields[k] = v
	}
	return e.store.Jobs.UpdateProcessing(ctx, jobID, fields)
}

func (e *Engine) analyze(ctx context.Context, content *models.Content, logger *zap.Logger) generator.Analysis {
	ctx, span := e.tracer.Start(ctx, "processor.analyze")
	defer span.End()

	analysis := e.generator.Analyze(ctx, content.OriginalText)

	// store writes must outlive the generation deadline
	if err := e.store.Contents.PatchAnalysis(context.WithoutCancel(ctx), content.ID, analysis.Map()); err != nil {
		logger.Warn("Failed to store content analysis", zap.Error(err))
	}
	return analysis
}

func (e *Engine) generate(ctx, genCtx context.Context, job *models.Job, content *models.Content, analysis generator.Analysis, logger *zap.Logger) ([]*generator.Result, error) {
	in := generator.Input{
		Text:        content.OriginalText,
		Analysis:    analysis,
		Preferences: map[string]interface{}(job.UserPreferences),
	}

	n := len(job.Platforms)
	results := make([]*generator.Result, 0, n)
	for i, platform := range job.Platforms {
		progress := 30 + i*40/n
		if err := e.checkpoint(ctx, job.ID, progress, fmt.Sprintf("Generating %s content", platform), nil); err != nil {
			return nil, err
		}

		platformCtx, span := e.tracer.Start(genCtx, "processor.generate",
			trace.WithAttributes(attribute.String("platform", platform)))
		result, err := e.generator.Generate(platformCtx, platform, in)
		span.End()

		if err != nil {
			logger.Warn("Skipping platform", zap.String("platform", platform), zap.Error(err))
			e.monitoring.Report(models.LogLevelWarn, "processor", "Platform generation skipped", err.Error(),
				service.WithJob(job.ID), service.WithPlatform(platform))
			continue
		}
		if result.UsedFallback {
			e.monitoring.Report(models.LogLevelWarn, "generator", "Fallback content used",
				fmt.Sprintf("model output for %s was unusable", platform),
				service.WithJob(job.ID), service.WithPlatform(platform))
		}
		results = append(results, result)
	}
	return results, nil
}

func newOutput(job *models.Job, r *generator.Result) *models.Output {
	return &models.Output{
		JobID:              job.ID,
		ContentID:          job.ContentID,
		UserID:             job.UserID,
		Platform:           r.Platform,
		Content:            datatypes.JSONMap(r.Content),
		QualityScore:       r.Quality,
		ValidationResults:  datatypes.JSONMap(r.Validation),
		GenerationMetadata: datatypes.JSONMap(r.Metadata),
	}
}

// savePartial inserts outputs one by one and returns the platforms that
// have no stored output
func (e *Engine) savePartial(ctx context.Context, job *models.Job, results []*generator.Result, logger *zap.Logger) []string {
	saved := make(map[string]bool, len(results))
	for _, r := range results {
		if err := e.store.Outputs.Create(ctx, newOutput(job, r)); err != nil {
			logger.Error("Failed to save output", zap.String("platform", r.Platform), zap.Error(err))
			e.monitoring.Report(models.LogLevelError, "processor", "Failed to save output", err.Error(),
				service.WithJob(job.ID), service.WithPlatform(r.Platform))
			continue
		}
		saved[r.Platform] = true
	}

	var missing []string
	for _, platform := range job.Platforms {
		if !saved[platform] {
			missing = append(missing, platform)
		}
	}
	return missing
}

// saveAtomic stores every output in one transaction or none at all
func (e *Engine) saveAtomic(ctx context.Context, job *models.Job, results []*generator.Result) error {
	produced := make(map[string]bool, len(results))
	for _, r := range results {
		produced[r.Platform] = true
	}
	for _, platform := range job.Platforms {
		if !produced[platform] {
			return fail("persist", fmt.Errorf("no output generated for platform %s", platform))
		}
	}

	err := e.store.Transaction(ctx, func(tx *store.Store) error {
		for _, r := range results {
			if err := tx.Outputs.Create(ctx, newOutput(job, r)); err != nil {
				return fmt.Errorf("failed to save %s output: %w", r.Platform, err)
			}
		}
		return nil
	})
	if err != nil {
		return fail("persist", err)
	}
	return nil
}

func (e *Engine) finish(ctx context.Context, job *models.Job, missing []string, logger *zap.Logger) error {
	now := time.Now()
	seconds := defaultProcessingSeconds
	if job.StartedAt != nil {
		seconds = int(now.Sub(*job.StartedAt).Seconds())
	}

	fields := map[string]interface{}{
		"status":                  models.JobStatusCompleted,
		"progress_percentage":     100,
		"current_step":            "Completed",
		"completed_at":            now,
		"processing_time_seconds": seconds,
	}
	if len(missing) > 0 {
		logger.Warn("Job completed without some outputs", zap.Strings("missing_platforms", missing))
		fields["error_details"] = datatypes.JSONMap{"missing_platforms": missing}
	}

	if err := e.store.Jobs.UpdateProcessing(ctx, job.ID, fields); err != nil {
		return err
	}

	if e.monitoring != nil {
		if err := e.monitoring.RecordMetric("job_processing_seconds", "histogram", float64(seconds),
			map[string]interface{}{"platforms": len(job.Platforms)}); err != nil {
			logger.Debug("Failed to record job metric", zap.Error(err))
		}
	}
	return nil
}

func (e *Engine) markFailed(ctx context.Context, jobID uuid.UUID, err error, logger *zap.Logger) {
	stage := "processing"
	var se *stageError
	if errors.As(err, &se) {
		stage = se.stage
	}

	logger.Error("Job failed", zap.String("stage", stage), zap.Error(err))

	updateErr := e.store.Jobs.UpdateProcessing(ctx, jobID, map[string]interface{}{
		"status":              models.JobStatusFailed,
		"progress_percentage": 0,
		"current_step":        "Failed",
		"error_message":       err.Error(),
		"error_details":       datatypes.JSONMap{"stage": stage, "error": err.Error()},
		"completed_at":        time.Now(),
	})
	if updateErr != nil && !errors.Is(updateErr, store.ErrNotProcessing) {
		logger.Error("Failed to mark job failed", zap.Error(updateErr))
	}

	e.monitoring.Report(models.LogLevelError, "processor", "Job failed", err.Error(),
		service.WithJob(jobID), service.WithContext(map[string]interface{}{"stage": stage}))
}
