// Package schedule keeps the named recurring jobs of the bot.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"math"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanivcohen1/agent-zero-telegram-bot/internal/domain"
)

var (
	// ErrAlreadyExists is returned when a job name is taken.
	ErrAlreadyExists = errors.New("schedule already exists")
	// ErrNotFound is returned when no job has the given name.
	ErrNotFound = errors.New("schedule not found")
	// ErrInvalidJob is returned for blank or padded names, empty prompts and
	// intervals outside (0, MaxInterval].
	ErrInvalidJob = errors.New("invalid schedule")
)

// MaxIntervalSeconds is the longest interval, in whole seconds, that fits in
// a time.Duration.
const MaxIntervalSeconds = math.MaxInt64 / int64(time.Second)

// MaxInterval is MaxIntervalSeconds as a duration.
const MaxInterval = time.Duration(MaxIntervalSeconds) * time.Second

// FireFunc runs one firing of a job. It must block until the firing is done.
type FireFunc func(ctx context.Context, job domain.ScheduledJob)

// SkipFunc is notified when a firing is dropped because the job is at its
// overlap cap.
type SkipFunc func(job domain.ScheduledJob)

// Options configures a Registry.
type Options struct {
	InitialDelay  time.Duration
	MaxConcurrent int
	OnSkip        SkipFunc
	Logger        *slog.Logger
}

// entry is a live job with its timer goroutine.
type entry struct {
	job     domain.ScheduledJob
	cancel  context.CancelFunc
	done    chan struct{}
	slots   chan struct{}
	firings atomic.Int64
	skipped atomic.Int64
}

// Registry owns every scheduled job. Names are unique.
type Registry struct {
	mu      sync.Mutex
	jobs    map[string]*entry
	fire    FireFunc
	opts    Options
	logger  *slog.Logger
	running sync.WaitGroup
	closed  bool
}

// NewRegistry creates an empty registry that hands firings to fire.
func NewRegistry(fire FireFunc, opts Options) *Registry {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = domain.DefaultMaxConcurrentFirings
	}
	if opts.InitialDelay < 0 {
		opts.InitialDelay = 0
	}
	return &Registry{
		jobs:   make(map[string]*entry),
		fire:   fire,
		opts:   opts,
		logger: opts.Logger,
	}
}

// Create registers a job and starts its timer. The first firing happens
// after the initial delay, then once per interval. Names are matched
// exactly, so a name with surrounding whitespace is rejected.
func (r *Registry) Create(name string, interval time.Duration, prompt string, chatID int64) error {
	if name == "" || name != strings.TrimSpace(name) || strings.TrimSpace(prompt) == "" ||
		interval <= 0 || interval > MaxInterval {
		return fmt.Errorf("%w: name=%q interval=%s", ErrInvalidJob, name, interval)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("%w: registry is closed", ErrInvalidJob)
	}
	if _, exists := r.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, name)
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &entry{
		job: domain.ScheduledJob{
			Name:          name,
			Interval:      interval,
			Prompt:        prompt,
			ChatID:        chatID,
			MaxConcurrent: r.opts.MaxConcurrent,
			CreatedAt:     time.Now().UTC(),
		},
		cancel: cancel,
		done:   make(chan struct{}),
		slots:  make(chan struct{}, r.opts.MaxConcurrent),
	}
	r.jobs[name] = e

	go r.run(ctx, e)

	r.logger.Info("Schedule created", "name", name, "interval", interval, "chat_id", chatID)
	return nil
}

// Cancel stops future firings of the named job. Firings already running
// are not interrupted.
func (r *Registry) Cancel(name string) error {
	r.mu.Lock()
	e, ok := r.jobs[name]
	if ok {
		delete(r.jobs, name)
	}
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	e.cancel()
	<-e.done
	r.logger.Info("Schedule cancelled", "name", name)
	return nil
}

// CancelAll stops every job and returns how many were removed.
func (r *Registry) CancelAll() int {
	r.mu.Lock()
	entries := make([]*entry, 0, len(r.jobs))
	for name, e := range r.jobs {
		entries = append(entries, e)
		delete(r.jobs, name)
	}
	r.mu.Unlock()

	for _, e := range entries {
		e.cancel()
	}
	for _, e := range entries {
		<-e.done
	}
	if len(entries) > 0 {
		r.logger.Info("All schedules cancelled", "count", len(entries))
	}
	return len(entries)
}

// List yields a snapshot of the jobs sorted by name.
func (r *Registry) List() iter.Seq[domain.JobInfo] {
	r.mu.Lock()
	infos := make([]domain.JobInfo, 0, len(r.jobs))
	for _, e := range r.jobs {
		infos = append(infos, e.info())
	}
	r.mu.Unlock()

	slices.SortFunc(infos, func(a, b domain.JobInfo) int {
		return strings.Compare(a.Name, b.Name)
	})
	return slices.Values(infos)
}

// Get returns the named job.
func (r *Registry) Get(name string) (domain.JobInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.jobs[name]
	if !ok {
		return domain.JobInfo{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return e.info(), nil
}

// Len returns the number of registered jobs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// Close cancels every job, refuses new ones and waits for running firings.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.CancelAll()

	done := make(chan struct{})
	go func() {
		r.running.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for scheduled firings: %w", ctx.Err())
	}
}

func (r *Registry) run(ctx context.Context, e *entry) {
	defer close(e.done)

	timer := time.NewTimer(r.opts.InitialDelay)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
		return
	}
	r.tryFire(e)

	ticker := time.NewTicker(e.job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.tryFire(e)
		case <-ctx.Done():
			return
		}
	}
}

// tryFire starts a firing unless the job already has MaxConcurrent in
// flight, in which case the firing is dropped.
func (r *Registry) tryFire(e *entry) {
	select {
	case e.slots <- struct{}{}:
	default:
		e.skipped.Add(1)
		r.logger.Warn("Schedule firing skipped, previous runs still in flight",
			"name", e.job.Name,
			"max_concurrent", e.job.MaxConcurrent)
		if r.opts.OnSkip != nil {
			r.opts.OnSkip(e.job)
		}
		return
	}

	e.firings.Add(1)
	r.running.Add(1)
	go func() {
		defer r.running.Done()
		defer func() { <-e.slots }()
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("Schedule firing panicked", "name", e.job.Name, "panic", rec)
			}
		}()
		r.logger.Debug("Schedule firing", "name", e.job.Name)
		// Firings outlive cancellation of their job.
		r.fire(context.Background(), e.job)
	}()
}

func (e *entry) info() domain.JobInfo {
	return domain.JobInfo{
		Name:      e.job.Name,
		Interval:  e.job.Interval,
		Seconds:   int64(e.job.Interval / time.Second),
		Prompt:    e.job.Prompt,
		ChatID:    e.job.ChatID,
		CreatedAt: e.job.CreatedAt,
		Firings:   e.firings.Load(),
		Skipped:   e.skipped.Load(),
	}
}
