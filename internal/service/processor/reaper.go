package processor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ifuryst/repurpose/internal/config"
	"github.com/ifuryst/repurpose/internal/models"
	"github.com/ifuryst/repurpose/internal/service"
	"github.com/ifuryst/repurpose/internal/service/store"
)

const leaseExpiredMessage = "processing lease expired"

// Reaper returns processing jobs with an expired lease to the queue, or
// fails them once they used up their retries
type Reaper struct {
	jobs         *store.JobStore
	monitoring   *service.MonitoringService
	logger       *zap.Logger
	interval     time.Duration
	leaseTimeout time.Duration
	maxAttempts  int
	ticker       *time.Ticker
	stopCh       chan struct{}
}

func NewReaper(cfg *config.ProcessorConfig, jobs *store.JobStore, monitoring *service.MonitoringService, logger *zap.Logger) *Reaper {
	jobTimeout := config.ParseDuration(cfg.JobTimeout, 300*time.Second)
	maxAttempts := cfg.RetryMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Reaper{
		jobs:         jobs,
		monitoring:   monitoring,
		logger:       logger,
		interval:     config.ParseDuration(cfg.ReapInterval, time.Minute),
		leaseTimeout: config.ParseDuration(cfg.LeaseTimeout, jobTimeout+time.Minute),
		maxAttempts:  maxAttempts,
		stopCh:       make(chan struct{}),
	}
}

func (r *Reaper) Start(ctx context.Context) {
	r.logger.Info("Starting lease reaper",
		zap.Duration("interval", r.interval),
		zap.Duration("lease_timeout", r.leaseTimeout))

	r.ticker = time.NewTicker(r.interval)
	go func() {
		for {
			select {
			case <-r.ticker.C:
				r.run(ctx)
			case <-r.stopCh:
				r.logger.Info("Lease reaper stopped")
				return
			case <-ctx.Done():
				r.logger.Info("Lease reaper context cancelled")
				return
			}
		}
	}()
}

func (r *Reaper) Stop() {
	if r.ticker != nil {
		r.ticker.Stop()
	}
	select {
	case <-r.stopCh:
	default:
		close(r.stopCh)
	}
}

func (r *Reaper) run(ctx context.Context) {
	start := time.Now()
	requeued, expired, err := r.ReapOnce(ctx)
	duration := time.Since(start)

	if err != nil {
		r.logger.Error("Lease reaping failed",
			zap.Error(err),
			zap.Duration("duration", duration))
		return
	}
	if requeued > 0 || expired > 0 {
		r.logger.Info("Lease reaping completed",
			zap.Int("requeued", requeued),
			zap.Int("expired", expired),
			zap.Duration("duration", duration))
	}
}

// ReapOnce handles every job whose heartbeat is older than the lease timeout
func (r *Reaper) ReapOnce(ctx context.Context) (requeued, expired int, err error) {
	cutoff := time.Now().Add(-r.leaseTimeout)

	stale, err := r.jobs.ListStale(ctx, cutoff, 100)
	if err != nil {
		return 0, 0, err
	}

	for _, job := range stale {
		logger := r.logger.With(zap.String("job_id", job.ID.String()), zap.Int("retry_count", job.RetryCount))

		if job.RetryCount >= r.maxAttempts {
			ok, err := r.jobs.ExpireLease(ctx, job.ID, cutoff, leaseExpiredMessage)
			if err != nil {
				return requeued, expired, err
			}
			if ok {
				expired++
				logger.Warn("Job lease expired, retries exhausted")
				r.monitoring.Report(models.LogLevelError, "reaper", "Job lease expired",
					fmt.Sprintf("job failed after %d retries", job.RetryCount),
					service.WithJob(job.ID))
			}
			continue
		}

		ok, err := r.jobs.Requeue(ctx, job.ID, cutoff)
		if err != nil {
			return requeued, expired, err
		}
		if ok {
			requeued++
			logger.Warn("Job lease expired, requeued")
			r.monitoring.Report(models.LogLevelWarn, "reaper", "Job requeued",
				"processing lease expired, job returned to pending",
				service.WithJob(job.ID))
		}
	}
	return requeued, expired, nil
}
