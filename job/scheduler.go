package job

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/yadunandan004/datacore/lock"
	"github.com/yadunandan004/datacore/logger"
	"github.com/yadunandan004/datacore/metrics"
	"github.com/yadunandan004/datacore/request"
)

var (
	ErrUnknownJob = errors.New("job: not registered")
	// ErrPanic wraps a panic raised by a job body.
	ErrPanic = errors.New("job: panicked")
)

type Func func(ctx context.Context) error

type Job struct {
	Name string
	Spec string
	// TTL bounds how long one run holds the cluster-wide lock.
	TTL time.Duration
	Fn  Func
}

// Scheduler runs cron jobs so that at most one process in the cluster
// executes a given job at a time.
type Scheduler struct {
	cron   *cron.Cron
	locker *lock.Locker

	mu   sync.RWMutex
	jobs map[string]Job
}

type Option func(*schedulerOptions)

type schedulerOptions struct {
	cronOpts []cron.Option
}

// WithSeconds accepts six-field specs with a leading seconds field.
func WithSeconds() Option {
	return func(o *schedulerOptions) {
		o.cronOpts = append(o.cronOpts, cron.WithSeconds())
	}
}

func WithLocation(loc *time.Location) Option {
	return func(o *schedulerOptions) {
		o.cronOpts = append(o.cronOpts, cron.WithLocation(loc))
	}
}

func NewScheduler(locker *lock.Locker, opts ...Option) *Scheduler {
	o := &schedulerOptions{}
	for _, opt := range opts {
		opt(o)
	}
	cronOpts := append([]cron.Option{
		cron.WithLogger(cronLogger{}),
		cron.WithChain(cron.Recover(cronLogger{})),
	}, o.cronOpts...)
	return &Scheduler{
		cron:   cron.New(cronOpts...),
		locker: locker,
		jobs:   make(map[string]Job),
	}
}

// Schedule registers fn under name. The lock taken per run is "<name>:lock".
func (s *Scheduler) Schedule(name, spec string, ttl time.Duration, fn Func) (cron.EntryID, error) {
	if name == "" || fn == nil {
		return 0, fmt.Errorf("job: name and func are required")
	}
	j := Job{Name: name, Spec: spec, TTL: ttl, Fn: fn}
	id, err := s.cron.AddFunc(spec, func() {
		_ = s.run(j)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to schedule %s: %w", name, err)
	}
	s.mu.Lock()
	s.jobs[name] = j
	s.mu.Unlock()
	return id, nil
}

// RunOnce runs a registered job now, through the same path as a scheduled
// run. ctx only bounds the wait; the run gets its own ambient scope.
func (s *Scheduler) RunOnce(ctx context.Context, name string) error {
	s.mu.RLock()
	j, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	done := make(chan error, 1)
	go func() { done <- s.run(j) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and returns a context done when running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) Entries() []cron.Entry {
	return s.cron.Entries()
}

func (s *Scheduler) run(j Job) error {
	ctx := request.Scope(context.Background(), request.NewSystemState(
		request.WithAttr("job", j.Name),
	))
	start := time.Now()
	logger.LogDebug(ctx, "[%s] schedule job start", j.Name)

	err := s.locker.Run(ctx, j.Name+":lock", j.TTL, recovered(j.Fn))
	switch {
	case err == nil:
		metrics.RecordJobRun(ctx, j.Name, "succeeded", time.Since(start))
		logger.LogDebug(ctx, "[%s] schedule job finished", j.Name)
	case errors.Is(err, lock.ErrLocked):
		metrics.RecordJobRun(ctx, j.Name, "skipped", time.Since(start))
		logger.LogDebug(ctx, "[%s] schedule job skipped, held elsewhere", j.Name)
	default:
		metrics.RecordJobRun(ctx, j.Name, "failed", time.Since(start))
		logger.LogError(ctx, fmt.Errorf("[%s] schedule job failed (spec %q, ttl %s): %w", j.Name, j.Spec, j.TTL, err))
	}
	return err
}

func recovered(fn Func) Func {
	return func(ctx context.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %v", ErrPanic, r)
			}
		}()
		return fn(ctx)
	}
}

// cronLogger routes cron's own messages into the process logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.LogDebug(context.Background(), "cron: %s %v", msg, keysAndValues)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.LogError(context.Background(), fmt.Errorf("cron: %s %v: %w", msg, keysAndValues, err))
}
