package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ifuryst/repurpose/internal/config"
	"github.com/ifuryst/repurpose/internal/models"
	"github.com/ifuryst/repurpose/internal/service"
	"github.com/ifuryst/repurpose/internal/service/generator"
	"github.com/ifuryst/repurpose/internal/service/store"
)

const (
	PersistencePartial = "partial"
	PersistenceAtomic  = "atomic"
)

var ErrAlreadyRunning = errors.New("job processor is already running")

type Config struct {
	BatchSize         int
	PollInterval      time.Duration
	ErrorBackoff      time.Duration
	MaxConcurrentJobs int
	// JobTimeout bounds the model calls of a single job
	JobTimeout      time.Duration
	PersistenceMode string
}

func NewConfig(cfg *config.ProcessorConfig) Config {
	c := Config{
		BatchSize:         cfg.BatchSize,
		PollInterval:      config.ParseDuration(cfg.PollInterval, 5*time.Second),
		ErrorBackoff:      config.ParseDuration(cfg.ErrorBackoff, 10*time.Second),
		MaxConcurrentJobs: cfg.MaxConcurrentJobs,
		JobTimeout:        config.ParseDuration(cfg.JobTimeout, 300*time.Second),
		PersistenceMode:   cfg.PersistenceMode,
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 5
	}
	if c.PersistenceMode != PersistenceAtomic {
		c.PersistenceMode = PersistencePartial
	}
	return c
}

// Wakeup blocks until new work may be pending. It returns nil on a signal
// and ctx.Err() once ctx ends.
type Wakeup interface {
	Wait(ctx context.Context) error
}

// Stats is a snapshot of the engine counters
type Stats struct {
	Running    bool       `json:"running"`
	Processed  int64      `json:"processed"`
	Completed  int64      `json:"completed"`
	Failed     int64      `json:"failed"`
	Cancelled  int64      `json:"cancelled"`
	LastPollAt *time.Time `json:"last_poll_at,omitempty"`
}

// Engine polls pending jobs and drives each through the generation pipeline
type Engine struct {
	config     Config
	store      *store.Store
	generator  *generator.Service
	monitoring *service.MonitoringService
	wakeup     Wakeup
	logger     *zap.Logger
	tracer     trace.Tracer

	// running stays true until the loop has returned
	running atomic.Bool
	wake    chan struct{}

	mu       sync.Mutex
	stop     chan struct{}
	done     chan struct{}
	lastPoll time.Time

	processed atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	cancelled atomic.Int64
}

func NewEngine(cfg Config, st *store.Store, gen *generator.Service, monitoring *service.MonitoringService, logger *zap.Logger) *Engine {
	return &Engine{
		config:     cfg,
		store:      st,
		generator:  gen,
		monitoring: monitoring,
		logger:     logger,
		tracer:     otel.Tracer("github.com/ifuryst/repurpose/processor"),
		wake:       make(chan struct{}, 1),
	}
}

// SetWakeup makes the poll loop also wait on an external signal
func (e *Engine) SetWakeup(w Wakeup) {
	e.wakeup = w
}

// Start runs the poll loop until Stop is called or ctx ends
func (e *Engine) Start(ctx context.Context) error {
	stop := make(chan struct{})
	done := make(chan struct{})
	e.mu.Lock()
	if e.running.Load() {
		e.mu.Unlock()
		return ErrAlreadyRunning
	}
	e.running.Store(true)
	e.stop = stop
	e.done = done
	e.mu.Unlock()
	defer func() {
		e.running.Store(false)
		close(done)
	}()

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if e.wakeup != nil {
		go e.listen(loopCtx)
	}

	e.logger.Info("Job processor started",
		zap.Int("batch_size", e.config.BatchSize),
		zap.Duration("poll_interval", e.config.PollInterval),
		zap.Int("max_concurrent_jobs", e.config.MaxConcurrentJobs),
		zap.String("persistence_mode", e.config.PersistenceMode))

	for {
		delay := e.config.PollInterval
		if _, err := e.RunOnce(loopCtx); err != nil {
			e.logger.Error("Job processor loop error", zap.Error(err))
			delay = e.config.ErrorBackoff
		}
		if !e.sleep(loopCtx, stop, delay) {
			break
		}
	}

	e.logger.Info("Job processor stopped")
	return nil
}

// Stop asks the loop to exit after the current cycle. In-flight jobs finish
// and IsRunning reports true until they have.
func (e *Engine) Stop() {
	e.mu.Lock()
	stop := e.stop
	e.stop = nil
	e.mu.Unlock()

	if stop != nil {
		close(stop)
		e.logger.Info("Stopping job processor")
	}
}

// Wait blocks until the loop started by Start has returned or ctx ends
func (e *Engine) Wait(ctx context.Context) error {
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()
	if done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) IsRunning() bool {
	return e.running.Load()
}

// Wake cuts the current poll wait short
func (e *Engine) Wake() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Notify wakes the engine for a newly created job
func (e *Engine) Notify(_ context.Context, _ uuid.UUID) error {
	e.Wake()
	return nil
}

func (e *Engine) Stats() Stats {
	e.mu.Lock()
	lastPoll := e.lastPoll
	e.mu.Unlock()

	s := Stats{
		Running:   e.running.Load(),
		Processed: e.processed.Load(),
		Completed: e.completed.Load(),
		Failed:    e.failed.Load(),
		Cancelled: e.cancelled.Load(),
	}
	if !lastPoll.IsZero() {
		s.LastPollAt = &lastPoll
	}
	return s
}

// RunOnce fetches one batch of pending jobs and processes those it claims.
// It returns the number of jobs this worker claimed.
func (e *Engine) RunOnce(ctx context.Context) (int, error) {
	e.mu.Lock()
	e.lastPoll = time.Now()
	e.mu.Unlock()

	jobs, err := e.store.Jobs.FetchPending(ctx, e.config.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(jobs) == 0 {
		return 0, nil
	}

	e.logger.Debug("Found pending jobs", zap.Int("count", len(jobs)))

	// jobs keep running when the loop is cancelled
	jobCtx := context.WithoutCancel(ctx)

	var claimed atomic.Int64
	if e.config.MaxConcurrentJobs <= 1 {
		for _, job := range jobs {
			if e.handle(jobCtx, job) {
				claimed.Add(1)
			}
		}
		return int(claimed.Load()), nil
	}

	g := new(errgroup.Group)
	g.SetLimit(e.config.MaxConcurrentJobs)
	for _, job := range jobs {
		g.Go(func() error {
			if e.handle(jobCtx, job) {
				claimed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	return int(claimed.Load()), nil
}

// handle claims and processes one job, reporting whether it was claimed.
// A panic inside the job fails that job only.
func (e *Engine) handle(ctx context.Context, job models.Job) (claimed bool) {
	ok, err := e.store.Jobs.Claim(ctx, job.ID)
	if err != nil {
		e.logger.Error("Failed to claim job", zap.String("job_id", job.ID.String()), zap.Error(err))
		return false
	}
	if !ok {
		e.logger.Debug("Job already claimed elsewhere", zap.String("job_id", job.ID.String()))
		return false
	}

	e.processed.Add(1)
	defer func() {
		if r := recover(); r != nil {
			logger := e.logger.With(zap.String("job_id", job.ID.String()))
			logger.Error("Job panicked", zap.Any("panic", r), zap.Stack("stack"))
			e.failed.Add(1)
			e.markFailed(ctx, job.ID, fail("panic", fmt.Errorf("panic: %v", r)), logger)
			claimed = true
		}
	}()

	e.processJob(ctx, job.ID)
	return true
}

// sleep waits for the next cycle and reports whether the loop should go on
func (e *Engine) sleep(ctx context.Context, stop <-chan struct{}, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-e.wake:
	case <-stop:
		return false
	case <-ctx.Done():
		return false
	}

	select {
	case <-stop:
		return false
	default:
		return true
	}
}

func (e *Engine) listen(ctx context.Context) {
	for {
		err := e.wakeup.Wait(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			e.logger.Warn("Wake-up listener error", zap.Error(err))
			select {
			case <-time.After(e.config.ErrorBackoff):
			case <-ctx.Done():
				return
			}
			continue
		}
		e.Wake()
	}
}
