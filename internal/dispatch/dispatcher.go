// Package dispatch runs tasks against the agent and relays the outcome to
// the chat.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/yanivcohen1/agent-zero-telegram-bot/internal/agent"
	"github.com/yanivcohen1/agent-zero-telegram-bot/internal/domain"
	"github.com/yanivcohen1/agent-zero-telegram-bot/internal/events"
)

// Notifier delivers messages to a chat.
type Notifier interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendPhoto(ctx context.Context, chatID int64, file domain.MediaFile, caption string) error
	SendDocument(ctx context.Context, chatID int64, file domain.MediaFile, caption string) error
}

// RunStore journals task runs.
type RunStore interface {
	StartRun(ctx context.Context, run *domain.TaskRun) error
	FinishRun(ctx context.Context, run *domain.TaskRun) error
}

// Publisher receives lifecycle events.
type Publisher interface {
	Publish(ev events.Event)
}

// Options configures a Dispatcher. Runs and Events are optional.
type Options struct {
	Runs     RunStore
	Events   Publisher
	PoolSize int
	Logger   *slog.Logger
}

// Dispatcher executes tasks. Execute is synchronous; Go detaches.
type Dispatcher struct {
	agent  agent.Invoker
	notify Notifier
	runs   RunStore
	events Publisher
	logger *slog.Logger

	sem      chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	draining bool
}

// New creates a dispatcher.
func New(invoker agent.Invoker, notifier Notifier, opts Options) *Dispatcher {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.PoolSize <= 0 {
		opts.PoolSize = 4
	}
	return &Dispatcher{
		agent:  invoker,
		notify: notifier,
		runs:   opts.Runs,
		events: opts.Events,
		logger: opts.Logger,
		sem:    make(chan struct{}, opts.PoolSize),
	}
}

// Go runs the task in the background and returns immediately. At most
// PoolSize tasks talk to the agent at once; the rest wait for a slot.
// Tasks handed in after Wait has been called are dropped.
func (d *Dispatcher) Go(task domain.Task) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.draining {
		d.logger.Warn("Dispatcher is draining, task dropped", "kind", task.Kind(), "chat_id", task.ChatID)
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		d.sem <- struct{}{}
		defer func() { <-d.sem }()

		// Detached from the caller: the update handler returns long before
		// the agent answers.
		ctx := context.Background()
		defer d.recoverTask(ctx, task)
		d.Execute(ctx, task)
	}()
}

// Wait stops accepting tasks and blocks until every task started with Go
// has finished or ctx ends.
func (d *Dispatcher) Wait(ctx context.Context) error {
	d.mu.Lock()
	d.draining = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for tasks: %w", ctx.Err())
	}
}

// Execute runs one task to completion. Every failure is reported to the
// chat and logged; nothing is returned to the caller.
func (d *Dispatcher) Execute(ctx context.Context, task domain.Task) {
	prefix := "🚀 Task"
	if task.Scheduled {
		prefix = "⏰ Scheduled Task"
	}

	run := &domain.TaskRun{
		ID:        uuid.NewString(),
		Prompt:    task.Prompt,
		ChatID:    task.ChatID,
		Scheduled: task.Scheduled,
		JobName:   task.JobName,
		Status:    domain.RunRunning,
		StartedAt: time.Now().UTC(),
	}
	logger := d.logger.With("run_id", run.ID, "kind", task.Kind(), "chat_id", task.ChatID)
	if task.JobName != "" {
		logger = logger.With("job", task.JobName)
	}

	d.startRun(ctx, logger, run)
	d.publish(events.TaskStarted, run, "")
	d.send(ctx, logger, task.ChatID, fmt.Sprintf("%s starting: '%s'...", prefix, task.Prompt))

	logger.Info("Task started", "attachments", len(task.Attachments))

	result, err := d.agent.Invoke(ctx, task.Prompt, task.Scheduled, task.Attachments)
	if err != nil {
		logger.Error("Task failed", "error", err)
		d.send(ctx, logger, task.ChatID, fmt.Sprintf("❌ Error executing task: %s", err))
		run.Status = domain.RunFailed
		run.Error = err.Error()
		d.finishRun(ctx, logger, run)
		d.publish(events.TaskFailed, run, run.Error)
		return
	}

	d.send(ctx, logger, task.ChatID, fmt.Sprintf("✅ %s Completed!\n\nResponse:\n%s", prefix, result.Text))

	for _, file := range result.Media {
		d.deliverMedia(ctx, logger, run, task.ChatID, file)
	}

	run.Status = domain.RunSucceeded
	run.MediaCount = len(result.Media)
	d.finishRun(ctx, logger, run)
	d.publish(events.TaskCompleted, run, "")

	logger.Info("Task completed", "media", len(result.Media), "duration", run.Duration())
}

// deliverMedia sends a file as a photo, falling back to a document and
// finally to a text notice. A failure never affects the other files.
func (d *Dispatcher) deliverMedia(ctx context.Context, logger *slog.Logger, run *domain.TaskRun, chatID int64, file domain.MediaFile) {
	err := d.notify.SendPhoto(ctx, chatID, file, file.Name)
	if err == nil {
		return
	}
	logger.Warn("Photo upload failed, retrying as document", "file", file.Name, "error", err)

	err = d.notify.SendDocument(ctx, chatID, file, file.Name)
	if err == nil {
		return
	}
	logger.Error("Document upload failed", "file", file.Name, "size", len(file.Data), "error", err)

	d.send(ctx, logger, chatID, fmt.Sprintf("⚠️ Could not send %s (%s): %s",
		file.Name, humanize.Bytes(uint64(len(file.Data))), err))
	d.publish(events.MediaFailed, run, file.Name)
}

func (d *Dispatcher) send(ctx context.Context, logger *slog.Logger, chatID int64, text string) {
	if err := d.notify.SendText(ctx, chatID, text); err != nil {
		logger.Error("Failed to notify chat", "error", err)
	}
}

func (d *Dispatcher) recoverTask(ctx context.Context, task domain.Task) {
	rec := recover()
	if rec == nil {
		return
	}
	d.logger.Error("Task panicked", "panic", rec, "kind", task.Kind(), "chat_id", task.ChatID)
	d.send(ctx, d.logger, task.ChatID, fmt.Sprintf("❌ Error executing task: %v", rec))
}

func (d *Dispatcher) startRun(ctx context.Context, logger *slog.Logger, run *domain.TaskRun) {
	if d.runs == nil {
		return
	}
	if err := d.runs.StartRun(ctx, run); err != nil {
		logger.Warn("Failed to record task start", "error", err)
	}
}

func (d *Dispatcher) finishRun(ctx context.Context, logger *slog.Logger, run *domain.TaskRun) {
	now := time.Now().UTC()
	run.FinishedAt = &now
	if d.runs == nil {
		return
	}
	if err := d.runs.FinishRun(ctx, run); err != nil {
		logger.Warn("Failed to record task result", "error", err)
	}
}

func (d *Dispatcher) publish(typ events.Type, run *domain.TaskRun, detail string) {
	if d.events == nil {
		return
	}
	d.events.Publish(events.Event{
		Type:      typ,
		RunID:     run.ID,
		ChatID:    run.ChatID,
		Scheduled: run.Scheduled,
		JobName:   run.JobName,
		Prompt:    run.Prompt,
		Detail:    detail,
		At:        time.Now().UTC(),
	})
}
