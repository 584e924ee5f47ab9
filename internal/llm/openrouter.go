// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

const (
	// DefaultBaseURL is the OpenRouter OpenAI-compatible endpoint
	DefaultBaseURL = "https://openrouter.ai/api/v1"

	// DefaultAppTitle is sent as X-Title on every request
	DefaultAppTitle = "AutoSwarm Designer"

	providerOpenRouter = "OpenRouter"
)

// ClientConfig configures an OpenRouterClient.
type ClientConfig struct {
	APIKey  string
	BaseURL string

	// Referer and Title identify the application to OpenRouter
	Referer string
	Title   string

	// Timeout bounds a whole request including streamed delivery; zero means none
	Timeout time.Duration

	Logger *slog.Logger
}

// OpenRouterClient talks to OpenRouter's chat completions API.
type OpenRouterClient struct {
	client *openai.Client
	logger *slog.Logger
}

// NewOpenRouterClient creates a client for the configured endpoint.
func NewOpenRouterClient(cfg ClientConfig) (*OpenRouterClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Title == "" {
		cfg.Title = DefaultAppTitle
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conf := openai.DefaultConfig(cfg.APIKey)
	conf.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	conf.HTTPClient = &http.Client{
		Timeout: cfg.Timeout,
		Transport: &headerTransport{
			base:    http.DefaultTransport,
			referer: cfg.Referer,
			title:   cfg.Title,
		},
	}

	logger.Info("Initializing OpenRouter client", "base_url", conf.BaseURL)
	return &OpenRouterClient{
		client: openai.NewClientWithConfig(conf),
		logger: logger,
	}, nil
}

// Complete implements Completer. A request with OnStream set is streamed.
func (c *OpenRouterClient) Complete(ctx context.Context, req Request) (*Response, error) {
	chatReq := c.buildRequest(req)

	c.logger.Debug("Requesting completion",
		"model", req.Model,
		"messages", len(req.Messages),
		"json_mode", req.JSONMode,
		"stream", req.OnStream != nil)

	if req.OnStream != nil {
		return c.stream(ctx, chatReq, req.OnStream)
	}

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, convertError(err)
	}

	out := &Response{
		Usage: &Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	if len(resp.Choices) > 0 {
		out.Content = resp.Choices[0].Message.Content
		c.logger.Debug("Received completion", "finish_reason", resp.Choices[0].FinishReason)
	} else {
		c.logger.Warn("Completion returned no choices", "model", req.Model)
	}
	return out, nil
}

func (c *OpenRouterClient) buildRequest(req Request) openai.ChatCompletionRequest {
	temperature := req.Temperature
	if temperature == 0 {
		temperature = DefaultTemperature
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
	if req.JSONMode {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return chatReq
}

// stream accumulates content deltas until the service closes the stream.
func (c *OpenRouterClient) stream(ctx context.Context, chatReq openai.ChatCompletionRequest, onChunk func(string)) (*Response, error) {
	stream, err := c.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return nil, convertError(err)
	}
	defer stream.Close()

	var content strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("stream interrupted: %w", convertError(err))
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		content.WriteString(delta)
		onChunk(delta)
	}

	return &Response{Content: content.String()}, nil
}

// Ping verifies the credential by listing models and returns how many the
// service reports.
func (c *OpenRouterClient) Ping(ctx context.Context) (int, error) {
	models, err := c.client.ListModels(ctx)
	if err != nil {
		return 0, fmt.Errorf("OpenRouter test failed: %w", convertError(err))
	}
	return len(models.Models), nil
}

// convertError maps go-openai errors to APIError where a status is known.
func convertError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &APIError{Provider: providerOpenRouter, StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := "unexpected response"
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return &APIError{Provider: providerOpenRouter, StatusCode: reqErr.HTTPStatusCode, Message: msg}
	}
	return err
}

// headerTransport adds OpenRouter's attribution headers.
type headerTransport struct {
	base    http.RoundTripper
	referer string
	title   string
}

func (t *headerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	if t.referer != "" {
		r.Header.Set("HTTP-Referer", t.referer)
	}
	if t.title != "" {
		r.Header.Set("X-Title", t.title)
	}
	return t.base.RoundTrip(r)
}
