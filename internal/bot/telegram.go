package bot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/yanivcohen1/agent-zero-telegram-bot/internal/domain"
)

const (
	// telegramMaxMessageChars stays under the 4096 limit of sendMessage.
	telegramMaxMessageChars = 4000
	// maxDownloadBytes matches the Bot API download limit.
	maxDownloadBytes = 20 << 20
)

// Telegram connects the router to the Bot API through telego.
type Telegram struct {
	bot    *telego.Bot
	http   *http.Client
	logger *slog.Logger
}

var (
	_ Notifier    = (*Telegram)(nil)
	_ FileFetcher = (*Telegram)(nil)
)

// NewTelegram creates a client for token.
func NewTelegram(token string, logger *slog.Logger) (*Telegram, error) {
	if logger == nil {
		logger = slog.Default()
	}
	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &Telegram{
		bot:    bot,
		http:   &http.Client{Timeout: 2 * time.Minute},
		logger: logger,
	}, nil
}

// Run long-polls for updates and hands every message to handle. It returns
// once ctx is cancelled and the handler has stopped.
func (t *Telegram) Run(ctx context.Context, handle func(context.Context, domain.Inbound)) error {
	updates, err := t.bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout: 30,
	})
	if err != nil {
		return fmt.Errorf("failed to start long polling: %w", err)
	}

	bh, err := th.NewBotHandler(t.bot, updates)
	if err != nil {
		return fmt.Errorf("failed to create bot handler: %w", err)
	}

	bh.HandleMessage(func(ctx *th.Context, message telego.Message) error {
		handle(ctx, toInbound(message))
		return nil
	}, th.AnyMessage())

	t.logger.Info("Telegram bot connected", "username", t.bot.Username())

	go bh.Start()

	<-ctx.Done()
	bh.Stop()
	t.logger.Info("Telegram bot stopped")
	return nil
}

// SendText sends text, split into several messages when it is too long.
func (t *Telegram) SendText(ctx context.Context, chatID int64, text string) error {
	for _, chunk := range splitMessage(text, telegramMaxMessageChars) {
		if _, err := t.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), chunk)); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
	return nil
}

// SendMarkdown sends pre-escaped MarkdownV2 text as one message.
func (t *Telegram) SendMarkdown(ctx context.Context, chatID int64, text string) error {
	msg := tu.Message(tu.ID(chatID), text)
	msg.ParseMode = telego.ModeMarkdownV2
	if _, err := t.bot.SendMessage(ctx, msg); err != nil {
		return fmt.Errorf("send markdown message: %w", err)
	}
	return nil
}

// SendPhoto uploads file as a compressed photo.
func (t *Telegram) SendPhoto(ctx context.Context, chatID int64, file domain.MediaFile, caption string) error {
	params := tu.Photo(tu.ID(chatID), tu.File(tu.NameReader(bytes.NewReader(file.Data), file.Name)))
	params.Caption = caption
	if _, err := t.bot.SendPhoto(ctx, params); err != nil {
		return fmt.Errorf("send photo %s: %w", file.Name, err)
	}
	return nil
}

// SendDocument uploads file unchanged.
func (t *Telegram) SendDocument(ctx context.Context, chatID int64, file domain.MediaFile, caption string) error {
	params := tu.Document(tu.ID(chatID), tu.File(tu.NameReader(bytes.NewReader(file.Data), file.Name)))
	params.Caption = caption
	if _, err := t.bot.SendDocument(ctx, params); err != nil {
		return fmt.Errorf("send document %s: %w", file.Name, err)
	}
	return nil
}

// Download fetches a file the user sent.
func (t *Telegram) Download(ctx context.Context, fileID string) ([]byte, error) {
	file, err := t.bot.GetFile(ctx, &telego.GetFileParams{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	if file.FilePath == "" {
		return nil, fmt.Errorf("file %s has no download path", fileID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.bot.FileDownloadURL(file.FilePath), nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	resp, err := t.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			t.logger.Debug("failed to close download body", "error", closeErr)
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

func toInbound(message telego.Message) domain.Inbound {
	in := domain.Inbound{
		ChatID:    message.Chat.ID,
		MessageID: message.MessageID,
		Text:      message.Text,
		Caption:   message.Caption,
	}
	if message.From != nil {
		in.SenderID = message.From.ID
		in.SenderName = message.From.FirstName
	}
	if n := len(message.Photo); n > 0 {
		// Sizes are sent smallest first.
		largest := message.Photo[n-1]
		in.Photo = &domain.PhotoRef{FileID: largest.FileID, Size: largest.FileSize}
	}
	return in
}

// splitMessage cuts text into chunks of at most limit runes, preferring
// line breaks. Chunks that are only line breaks are dropped.
func splitMessage(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var chunks []string
	runes := []rune(text)
	for len(runes) > limit {
		cut := limit
		if i := lastIndexRune(runes[:limit], '\n'); i > limit/2 {
			cut = i + 1
		}
		if chunk := strings.TrimRight(string(runes[:cut]), "\n"); chunk != "" {
			chunks = append(chunks, chunk)
		}
		runes = runes[cut:]
	}
	if chunk := strings.TrimRight(string(runes), "\n"); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}

func lastIndexRune(runes []rune, r rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == r {
			return i
		}
	}
	return -1
}
