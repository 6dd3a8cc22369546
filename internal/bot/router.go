// Package bot turns chat updates into commands, photo operations and agent
// tasks.
package bot

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/yanivcohen1/agent-zero-telegram-bot/internal/dispatch"
	"github.com/yanivcohen1/agent-zero-telegram-bot/internal/domain"
	"github.com/yanivcohen1/agent-zero-telegram-bot/internal/identity"
	"github.com/yanivcohen1/agent-zero-telegram-bot/internal/schedule"
)

const (
	scheduleUsage      = "Usage: /schedule <name> <seconds> <prompt>"
	getPicPrefix       = "get pic "
	defaultPhotoPrompt = "Describe this image."
)

// Notifier delivers replies, including MarkdownV2 formatted ones.
type Notifier interface {
	dispatch.Notifier
	SendMarkdown(ctx context.Context, chatID int64, text string) error
}

// FileFetcher downloads a file sent by the user.
type FileFetcher interface {
	Download(ctx context.Context, fileID string) ([]byte, error)
}

// Dispatcher runs tasks without blocking the caller.
type Dispatcher interface {
	Go(task domain.Task)
}

// Schedules is the schedule registry as seen by the chat commands.
type Schedules interface {
	Create(name string, interval time.Duration, prompt string, chatID int64) error
	Cancel(name string) error
	CancelAll() int
	List() iter.Seq[domain.JobInfo]
	Len() int
}

// Session is the conversation state the reset commands clear.
type Session interface {
	Reset() bool
}

// RouterConfig holds the router collaborators.
type RouterConfig struct {
	Allow       *identity.Allowlist
	Notifier    Notifier
	Files       FileFetcher
	Dispatcher  Dispatcher
	Schedules   Schedules
	Session     Session
	Photos      *PhotoStore
	AgentURL    string
	Environment string
	Logger      *slog.Logger
}

// Router handles inbound updates from the single authorized user.
type Router struct {
	allow       *identity.Allowlist
	notify      Notifier
	files       FileFetcher
	dispatcher  Dispatcher
	schedules   Schedules
	session     Session
	photos      *PhotoStore
	agentURL    string
	environment string
	logger      *slog.Logger
}

// NewRouter creates a router.
func NewRouter(cfg RouterConfig) *Router {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Router{
		allow:       cfg.Allow,
		notify:      cfg.Notifier,
		files:       cfg.Files,
		dispatcher:  cfg.Dispatcher,
		schedules:   cfg.Schedules,
		session:     cfg.Session,
		photos:      cfg.Photos,
		agentURL:    cfg.AgentURL,
		environment: cfg.Environment,
		logger:      cfg.Logger,
	}
}

// Handle processes one update. It never blocks on the agent.
func (r *Router) Handle(ctx context.Context, in domain.Inbound) {
	if !r.allow.Allowed(in.SenderID) {
		r.logger.Warn("Unauthorized access attempt", "sender_id", in.SenderID, "chat_id", in.ChatID)
		return
	}
	logger := r.logger.With("chat_id", in.ChatID, "sender", in.SenderName)

	switch {
	case in.Photo != nil:
		r.handlePhoto(ctx, logger, in)
	case strings.HasPrefix(in.Text, "/"):
		r.handleCommand(ctx, logger, in)
	case strings.TrimSpace(in.Text) != "":
		r.handleText(ctx, logger, in)
	default:
		logger.Debug("Ignoring update without text or photo")
	}
}

func (r *Router) handleCommand(ctx context.Context, logger *slog.Logger, in domain.Inbound) {
	fields := strings.Fields(in.Text)
	cmd := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	args := fields[1:]

	logger.Info("Command received", "command", cmd, "args", len(args))

	switch cmd {
	case "schedule":
		r.cmdSchedule(ctx, logger, in.ChatID, args)
	case "stopschedule":
		r.cmdStopSchedule(ctx, in.ChatID, args)
	case "schedules":
		r.cmdSchedules(ctx, in.ChatID)
	case "new":
		r.resetSession(ctx, logger, in.ChatID, "✨ New session started. Conversation history cleared.")
	case "stop":
		r.resetSession(ctx, logger, in.ChatID, "🛑 Conversation stopped and session cleared.")
	case "restart":
		r.resetSession(ctx, logger, in.ChatID, "🔄 Session restarted. Ready for a new conversation.")
	case "help", "start":
		if err := r.notify.SendMarkdown(ctx, in.ChatID, helpText(r.agentURL, r.environment)); err != nil {
			logger.Error("Failed to send help", "error", err)
		}
	default:
		logger.Debug("Ignoring unknown command", "command", cmd)
	}
}

func (r *Router) cmdSchedule(ctx context.Context, logger *slog.Logger, chatID int64, args []string) {
	if len(args) < 2 {
		r.reply(ctx, chatID, scheduleUsage)
		return
	}
	name := args[0]
	seconds, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || seconds > schedule.MaxIntervalSeconds {
		r.reply(ctx, chatID, scheduleUsage)
		return
	}
	prompt := strings.Join(args[2:], " ")
	if prompt == "" {
		r.reply(ctx, chatID, "Please provide a prompt. "+scheduleUsage)
		return
	}

	err = r.schedules.Create(name, time.Duration(seconds)*time.Second, prompt, chatID)
	switch {
	case errors.Is(err, schedule.ErrAlreadyExists):
		r.reply(ctx, chatID, fmt.Sprintf("❌ A schedule named '%s' already exists.", name))
	case errors.Is(err, schedule.ErrInvalidJob):
		r.reply(ctx, chatID, scheduleUsage)
	case err != nil:
		logger.Error("Failed to create schedule", "name", name, "error", err)
		r.reply(ctx, chatID, fmt.Sprintf("❌ Could not create schedule '%s': %s", name, err))
	default:
		r.reply(ctx, chatID, fmt.Sprintf("✅ Scheduled task '%s' added! Will run '%s' every %d seconds.", name, prompt, seconds))
	}
}

func (r *Router) cmdStopSchedule(ctx context.Context, chatID int64, args []string) {
	if len(args) > 0 {
		name := args[0]
		if err := r.schedules.Cancel(name); err != nil {
			r.reply(ctx, chatID, fmt.Sprintf("❌ No scheduled task found with name '%s'.", name))
			return
		}
		r.reply(ctx, chatID, fmt.Sprintf("✅ Scheduled task '%s' stopped.", name))
		return
	}

	if r.schedules.CancelAll() == 0 {
		r.reply(ctx, chatID, "No scheduled tasks running.")
		return
	}
	r.reply(ctx, chatID, "✅ All scheduled tasks stopped.")
}

func (r *Router) cmdSchedules(ctx context.Context, chatID int64) {
	if r.schedules.Len() == 0 {
		r.reply(ctx, chatID, "No scheduled tasks running.")
		return
	}

	var b strings.Builder
	b.WriteString("📅 Running Schedules:\n")
	for job := range r.schedules.List() {
		fmt.Fprintf(&b, "• %s (every %ds): %s\n", job.Name, job.Seconds, job.Prompt)
	}
	r.reply(ctx, chatID, b.String())
}

func (r *Router) resetSession(ctx context.Context, logger *slog.Logger, chatID int64, text string) {
	cleared := r.session.Reset()
	logger.Info("Session reset", "cleared", cleared)
	r.reply(ctx, chatID, text)
}

func (r *Router) handleText(ctx context.Context, logger *slog.Logger, in domain.Inbound) {
	logger.Info("Text received", "length", len(in.Text))

	if len(in.Text) >= len(getPicPrefix) && strings.EqualFold(in.Text[:len(getPicPrefix)], getPicPrefix) {
		r.sendStoredPhoto(ctx, logger, in.ChatID, strings.TrimSpace(in.Text[len(getPicPrefix):]))
		return
	}

	r.dispatcher.Go(domain.Task{Prompt: in.Text, ChatID: in.ChatID})
}

func (r *Router) sendStoredPhoto(ctx context.Context, logger *slog.Logger, chatID int64, name string) {
	data, err := r.photos.Load(name)
	if err != nil {
		if !errors.Is(err, ErrPhotoNotFound) {
			logger.Error("Failed to read stored photo", "name", name, "error", err)
		}
		r.reply(ctx, chatID, fmt.Sprintf("❌ Could not find picture named '%s' in '%s/'", name, r.photos.Dir()))
		return
	}

	file := domain.MediaFile{Name: name, Data: data}
	if err := r.notify.SendPhoto(ctx, chatID, file, "Here is "+name); err != nil {
		logger.Error("Failed to send stored photo", "name", name, "error", err)
		r.reply(ctx, chatID, fmt.Sprintf("❌ Could not send picture '%s': %s", name, err))
	}
}

func (r *Router) handlePhoto(ctx context.Context, logger *slog.Logger, in domain.Inbound) {
	logger.Info("Photo received", "caption", in.Caption, "size", in.Photo.Size)

	data, err := r.files.Download(ctx, in.Photo.FileID)
	if err != nil {
		logger.Error("Failed to download photo", "error", err)
		r.reply(ctx, in.ChatID, fmt.Sprintf("❌ Could not download photo: %s", err))
		return
	}

	filename := photoFilename(in.Caption, in.MessageID)
	path, err := r.photos.Save(filename, data)
	if err != nil {
		logger.Error("Failed to save photo", "filename", filename, "error", err)
		r.reply(ctx, in.ChatID, fmt.Sprintf("❌ Could not save photo: %s", err))
		return
	}
	r.reply(ctx, in.ChatID, fmt.Sprintf("✅ Photo saved as '%s'. You can ask for it later using 'get pic %s'", path, filename))

	prompt := strings.TrimSpace(in.Caption)
	if prompt == "" {
		prompt = defaultPhotoPrompt
	}
	r.dispatcher.Go(domain.Task{
		Prompt:      prompt,
		ChatID:      in.ChatID,
		Attachments: []domain.Attachment{{Filename: filename, Data: data}},
	})
}

func (r *Router) reply(ctx context.Context, chatID int64, text string) {
	if err := r.notify.SendText(ctx, chatID, text); err != nil {
		r.logger.Error("Failed to send reply", "chat_id", chatID, "error", err)
	}
}
