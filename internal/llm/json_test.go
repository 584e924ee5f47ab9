// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type plan struct {
	Steps []string `json:"steps"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
		wantErr bool
	}{
		{name: "plain object", content: `{"steps": ["a", "b"]}`, want: []string{"a", "b"}},
		{name: "fenced json block", content: "Here you go:\n```json\n{\"steps\": [\"x\"]}\n```\nThanks", want: []string{"x"}},
		{name: "fenced block without language", content: "```\n{\"steps\": []}\n```", want: []string{}},
		{name: "no json at all", content: "I cannot help with that", wantErr: true},
		{name: "broken fenced block", content: "```json\n{\"steps\": [\n```", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p plan
			err := DecodeJSON(tt.content, &p)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrMalformedJSON)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Steps)
		})
	}
}

func TestDecodeJSON_TruncatesContent(t *testing.T) {
	err := DecodeJSON(strings.Repeat("z", 500), &plan{})

	require.Error(t, err)
	assert.Less(t, len(err.Error()), 300)
}

func TestCompleteJSON(t *testing.T) {
	var sawJSONMode bool
	c := CompleterFunc(func(_ context.Context, req Request) (*Response, error) {
		sawJSONMode = req.JSONMode
		return &Response{Content: `{"steps": ["one"]}`}, nil
	})

	got, err := CompleteJSON[plan](context.Background(), c, Request{Model: "m"})

	require.NoError(t, err)
	assert.True(t, sawJSONMode)
	assert.Equal(t, []string{"one"}, got.Steps)
}

func TestCompleteJSON_PropagatesCompleterError(t *testing.T) {
	boom := errors.New("rate limited")
	c := CompleterFunc(func(context.Context, Request) (*Response, error) {
		return nil, boom
	})

	_, err := CompleteJSON[plan](context.Background(), c, Request{})

	assert.ErrorIs(t, err, boom)
}

func TestCompleteJSON_EmptyResponse(t *testing.T) {
	tests := []struct {
		name string
		resp *Response
	}{
		{name: "nil response", resp: nil},
		{name: "blank content", resp: &Response{Content: "  \n"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := CompleterFunc(func(context.Context, Request) (*Response, error) {
				return tt.resp, nil
			})

			_, err := CompleteJSON[plan](context.Background(), c, Request{})

			assert.ErrorIs(t, err, ErrEmptyResponse)
		})
	}
}
