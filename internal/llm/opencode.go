// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sst/opencode-sdk-go"
	"github.com/sst/opencode-sdk-go/option"
)

// sessionPrompter sends one prompt in a fresh session and returns the
// session's text parts.
type sessionPrompter interface {
	Prompt(ctx context.Context, title, model, text string) ([]string, error)
}

// OpencodeCompleter runs completions through a local `opencode serve`
// instance instead of calling a model provider directly. Each request gets
// its own session, deleted once the reply arrives.
type OpencodeCompleter struct {
	sessions sessionPrompter
	baseURL  string
	logger   *slog.Logger
}

// NewOpencodeCompleter connects to the opencode server at baseURL
// (e.g. http://localhost:4096).
func NewOpencodeCompleter(baseURL string, logger *slog.Logger) *OpencodeCompleter {
	if logger == nil {
		logger = slog.Default()
	}
	sdk := opencode.NewClient(
		option.WithBaseURL(baseURL),
		// No API key needed for local connections
	)
	return &OpencodeCompleter{
		sessions: &sdkSessions{sdk: sdk, logger: logger},
		baseURL:  baseURL,
		logger:   logger,
	}
}

// BaseURL returns the server this completer talks to.
func (c *OpencodeCompleter) BaseURL() string {
	return c.baseURL
}

// Complete implements Completer. The server has no separate system role in
// a single prompt, so messages are flattened into one text part with role
// headings. Streaming callers receive the whole reply as one chunk.
func (c *OpencodeCompleter) Complete(ctx context.Context, req Request) (*Response, error) {
	text := flattenMessages(req.Messages)
	if req.JSONMode {
		text += "\n\nRespond with a single JSON object and nothing else."
	}

	parts, err := c.sessions.Prompt(ctx, "autoswarm", req.Model, text)
	if err != nil {
		return nil, err
	}

	content := strings.Join(parts, "")
	if req.OnStream != nil && content != "" {
		req.OnStream(content)
	}

	c.logger.Debug("opencode completion received", "model", req.Model, "length", len(content))
	return &Response{Content: content}, nil
}

func flattenMessages(messages []Message) string {
	var b strings.Builder
	for i, m := range messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "## %s\n%s", strings.ToUpper(string(m.Role)), m.Content)
	}
	return b.String()
}

// sdkSessions is the opencode SDK implementation of sessionPrompter.
type sdkSessions struct {
	sdk    *opencode.Client
	logger *slog.Logger
}

func (s *sdkSessions) Prompt(ctx context.Context, title, model, text string) ([]string, error) {
	session, err := s.sdk.Session.New(ctx, opencode.SessionNewParams{
		Title: opencode.F(title),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	defer func() {
		if _, err := s.sdk.Session.Delete(context.WithoutCancel(ctx), session.ID, opencode.SessionDeleteParams{}); err != nil {
			s.logger.Warn("Failed to delete opencode session", "session_id", session.ID, "error", err)
		}
	}()

	params := opencode.SessionPromptParams{
		Parts: opencode.F([]opencode.SessionPromptParamsPartUnion{
			opencode.TextPartInputParam{
				Type: opencode.F(opencode.TextPartInputTypeText),
				Text: opencode.F(text),
			},
		}),
	}
	if model != "" {
		params.Model = opencode.F(opencode.SessionPromptParamsModel{
			ModelID: opencode.F(model),
		})
	}

	message, err := s.sdk.Session.Prompt(ctx, session.ID, params)
	if err != nil {
		return nil, fmt.Errorf("failed to send prompt: %w", err)
	}

	texts := make([]string, 0, len(message.Parts))
	for _, part := range message.Parts {
		if part.Type == opencode.PartTypeText {
			texts = append(texts, part.Text)
		}
	}
	return texts, nil
}
