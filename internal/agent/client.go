package agent

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/yanivcohen1/agent-zero-telegram-bot/internal/domain"
)

const (
	// maxResponseBytes bounds a single agent answer; file batches are base64.
	maxResponseBytes = 64 << 20
	// maxErrorBodyBytes bounds the body quoted in a StatusError, which is
	// shown in the chat.
	maxErrorBodyBytes = 500
)

// Client talks to the remote agent over HTTP JSON.
type Client struct {
	http          *http.Client
	baseURL       string
	apiKey        string
	lifetimeHours int
	contextFields []string
	state         ContextStore
	logger        *slog.Logger
}

// ClientConfig holds configuration for the agent client.
type ClientConfig struct {
	BaseURL        string
	APIKey         string
	LifetimeHours  int
	RequestTimeout time.Duration
	HTTPClient     *http.Client // optional, overrides RequestTimeout
}

// DefaultClientConfig returns default configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:        "http://localhost:50001",
		LifetimeHours:  24,
		RequestTimeout: 10 * time.Minute,
	}
}

// NewClient creates a client bound to the given conversation state.
func NewClient(cfg ClientConfig, state ContextStore, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if state == nil {
		return nil, fmt.Errorf("agent client requires a context store")
	}

	defaults := DefaultClientConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.LifetimeHours <= 0 {
		cfg.LifetimeHours = defaults.LifetimeHours
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaults.RequestTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}

	return &Client{
		http:          httpClient,
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:        cfg.APIKey,
		lifetimeHours: cfg.LifetimeHours,
		contextFields: ContextFieldNames,
		state:         state,
		logger:        logger,
	}, nil
}

// Invoke sends one prompt to the agent.
//
// Interactive calls carry the current conversation context and replace it
// with the one the agent answers with. Scheduled calls never touch it.
func (c *Client) Invoke(ctx context.Context, prompt string, scheduled bool, attachments []domain.Attachment) (*Result, error) {
	req := messageRequest{
		Message:       prompt,
		LifetimeHours: c.lifetimeHours,
	}
	for _, a := range attachments {
		req.Attachments = append(req.Attachments, attachmentPayload{
			Filename: a.Filename,
			Base64:   base64.StdEncoding.EncodeToString(a.Data),
		})
	}
	if !scheduled {
		req.ContextID = c.state.Current()
	}

	c.logger.Debug("Sending prompt to agent",
		"scheduled", scheduled,
		"attachments", len(req.Attachments),
		"has_context", req.ContextID != "",
	)

	status, body, err := c.postJSON(ctx, "/api_message", req)
	if err != nil {
		c.logger.Error("Agent request failed", "error", err, "scheduled", scheduled)
		return nil, ErrUnreachable
	}
	if status != http.StatusOK {
		c.logger.Warn("Agent returned non-200", "status", status, "body", truncate(string(body), maxErrorBodyBytes))
		return nil, &StatusError{StatusCode: status, Body: truncate(strings.TrimSpace(string(body)), maxErrorBodyBytes)}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		c.logger.Error("Agent response is not a JSON object", "error", err)
		return nil, fmt.Errorf("agent returned malformed response: %w", err)
	}

	text := NoTextResponse
	if raw, ok := fields["response"]; ok {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && strings.TrimSpace(s) != "" {
			text = s
		}
	}

	result := &Result{}
	if !scheduled {
		if id, ok := ExtractContextID(fields, c.contextFields); ok {
			c.state.Set(id)
			result.ContextID = id
		} else {
			c.logger.Warn("Agent response carried no context id", "accepted_fields", c.contextFields)
		}
	}

	if paths := ExtractMediaPaths(text); len(paths) > 0 {
		result.Media = c.fetchMedia(ctx, paths)
	}
	result.Text = StripMediaMarkers(text)

	return result, nil
}

// fetchMedia downloads every referenced file in one batch. Failures are
// logged per file and never fail the call.
func (c *Client) fetchMedia(ctx context.Context, paths []string) []domain.MediaFile {
	c.logger.Debug("Fetching agent media", "paths", quoteAll(paths))

	status, body, err := c.postJSON(ctx, "/api_files_get", filesRequest{Paths: paths})
	if err != nil {
		c.logger.Error("Agent media fetch failed", "error", err, "count", len(paths))
		return nil
	}
	if status != http.StatusOK {
		c.logger.Warn("Agent media fetch returned non-200", "status", status, "count", len(paths))
		return nil
	}

	var files map[string]string
	if err := json.Unmarshal(body, &files); err != nil {
		c.logger.Error("Agent media response is malformed", "error", err)
		return nil
	}

	media := make([]domain.MediaFile, 0, len(paths))
	for _, p := range paths {
		payload, ok := lookupMedia(files, p)
		if !ok {
			c.logger.Warn("Agent did not return requested file", "path", p)
			continue
		}
		data, err := decodeMedia(payload)
		if err != nil {
			c.logger.Warn("Failed to decode agent file", "path", p, "error", err)
			continue
		}
		media = append(media, domain.MediaFile{Name: path.Base(p), Data: data})
	}
	return media
}

// Health checks that the agent endpoint answers HTTP at all.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("failed to close health response body", "error", closeErr)
		}
	}()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) postJSON(ctx context.Context, endpoint string, payload any) (int, []byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(data))
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-KEY", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("post %s: %w", endpoint, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("failed to close agent response body", "error", closeErr)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("read %s response: %w", endpoint, err)
	}
	return resp.StatusCode, body, nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
