// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *OpenRouterClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewOpenRouterClient(ClientConfig{
		APIKey:  "test-key",
		BaseURL: server.URL + "/api/v1",
		Referer: "http://localhost",
	})
	require.NoError(t, err)
	return client
}

func TestNewOpenRouterClient_RequiresKey(t *testing.T) {
	_, err := NewOpenRouterClient(ClientConfig{APIKey: "  "})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestOpenRouterClient_Complete(t *testing.T) {
	var captured map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, DefaultAppTitle, r.Header.Get("X-Title"))
		assert.Equal(t, "http://localhost", r.Header.Get("HTTP-Referer"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &captured))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "cmpl-1",
			"object": "chat.completion",
			"model": "openai/gpt-4o-mini",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "hello world"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 2, "total_tokens": 14}
		}`)
	})

	resp, err := client.Complete(context.Background(), Request{
		Model: "openai/gpt-4o-mini",
		Messages: []Message{
			{Role: RoleSystem, Content: "Reply briefly."},
			{Role: RoleUser, Content: "Say hello world."},
		},
		Temperature: 0.2,
		MaxTokens:   50,
	})

	require.NoError(t, err)
	assert.Equal(t, "hello world", resp.Content)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 14, resp.Usage.TotalTokens)

	assert.Equal(t, "openai/gpt-4o-mini", captured["model"])
	assert.EqualValues(t, 50, captured["max_tokens"])
	assert.InDelta(t, 0.2, captured["temperature"], 0.0001)
	assert.NotContains(t, captured, "response_format")
	messages, ok := captured["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, messages, 2)
}

func TestOpenRouterClient_CompleteDefaults(t *testing.T) {
	var captured map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices": []}`)
	})

	resp, err := client.Complete(context.Background(), Request{
		Model:    "m",
		Messages: []Message{{Role: RoleUser, Content: "x"}},
	})

	require.NoError(t, err)
	assert.Empty(t, resp.Content)
	assert.EqualValues(t, DefaultMaxTokens, captured["max_tokens"])
	assert.InDelta(t, DefaultTemperature, captured["temperature"], 0.0001)
}

func TestOpenRouterClient_JSONMode(t *testing.T) {
	var captured map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices": [{"index": 0, "message": {"role": "assistant", "content": "{\"ok\": true}"}}]}`)
	})

	resp, err := client.Complete(context.Background(), Request{
		Model:    "m",
		Messages: []Message{{Role: RoleUser, Content: "json please"}},
		JSONMode: true,
	})

	require.NoError(t, err)
	assert.Equal(t, `{"ok": true}`, resp.Content)
	format, ok := captured["response_format"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "json_object", format["type"])
}

func TestOpenRouterClient_Stream(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, true, body["stream"])

		w.Header().Set("Content-Type", "text/event-stream")
		for _, delta := range []string{"Hel", "lo", " there"} {
			fmt.Fprintf(w, "data: {\"id\":\"c\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", delta)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	var chunks []string
	resp, err := client.Complete(context.Background(), Request{
		Model:    "m",
		Messages: []Message{{Role: RoleUser, Content: "stream"}},
		OnStream: func(chunk string) { chunks = append(chunks, chunk) },
	})

	require.NoError(t, err)
	assert.Equal(t, "Hello there", resp.Content)
	assert.Equal(t, []string{"Hel", "lo", " there"}, chunks)
}

func TestOpenRouterClient_APIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error": {"message": "invalid api key", "type": "auth_error", "code": 401}}`)
	})

	_, err := client.Complete(context.Background(), Request{
		Model:    "m",
		Messages: []Message{{Role: RoleUser, Content: "x"}},
	})

	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "invalid api key")
	assert.Contains(t, err.Error(), "OpenRouter API error (401)")
}

func TestOpenRouterClient_Ping(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/models", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"object": "list", "data": [{"id": "a"}, {"id": "b"}, {"id": "c"}]}`)
	})

	count, err := client.Ping(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
