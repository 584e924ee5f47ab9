// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrMalformedJSON is returned when a JSON-mode response cannot be decoded.
	ErrMalformedJSON = errors.New("failed to parse LLM response as JSON")

	// ErrEmptyResponse is returned when a JSON-mode call yields no content.
	ErrEmptyResponse = errors.New("empty response from LLM")
)

var fencedBlock = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")

// CompleteJSON runs req in JSON mode and decodes the response into T. When
// the content is not valid JSON, the first fenced code block is tried before
// giving up.
func CompleteJSON[T any](ctx context.Context, c Completer, req Request) (T, error) {
	var out T

	req.JSONMode = true
	resp, err := c.Complete(ctx, req)
	if err != nil {
		return out, err
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return out, ErrEmptyResponse
	}

	if err := DecodeJSON(resp.Content, &out); err != nil {
		return out, err
	}
	return out, nil
}

// DecodeJSON decodes content into v, falling back to a fenced code block.
func DecodeJSON(content string, v any) error {
	if err := json.Unmarshal([]byte(content), v); err == nil {
		return nil
	}

	if m := fencedBlock.FindStringSubmatch(content); m != nil {
		if err := json.Unmarshal([]byte(strings.TrimSpace(m[1])), v); err == nil {
			return nil
		}
	}

	return fmt.Errorf("%w: %s", ErrMalformedJSON, truncate(content, 200))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
