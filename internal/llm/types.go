// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

// Package llm is the client side of the text-completion service that backs
// every agent.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Default generation parameters
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 4096
)

// Role tags a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged chat message.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request describes a single completion call.
type Request struct {
	Messages    []Message
	Model       string
	Temperature float32
	MaxTokens   int

	// JSONMode asks the service for a JSON object response
	JSONMode bool

	// OnStream, when set, switches to streaming delivery. It receives each
	// content delta in order, on the calling goroutine.
	OnStream func(chunk string)
}

// Usage is the token accounting reported by the service.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// Response is the result of a completion call. Usage is nil when the
// service does not report it.
type Response struct {
	Content string
	Usage   *Usage
}

// Completer is the text-completion collaborator.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req Request) (*Response, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

// APIError is a non-success response from the service.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (%d): %s", e.Provider, e.StatusCode, e.Message)
}

// ErrMissingAPIKey is returned when a client is built without a credential.
var ErrMissingAPIKey = errors.New("API key is required")
