// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package llm

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSessions struct {
	mock.Mock
}

func (m *mockSessions) Prompt(ctx context.Context, title, model, text string) ([]string, error) {
	args := m.Called(ctx, title, model, text)
	parts, _ := args.Get(0).([]string)
	return parts, args.Error(1)
}

func TestNewOpencodeCompleter(t *testing.T) {
	c := NewOpencodeCompleter("http://localhost:4096", nil)

	assert.NotNil(t, c)
	assert.Equal(t, "http://localhost:4096", c.BaseURL())
	var _ Completer = c
}

func TestOpencodeCompleter_Complete(t *testing.T) {
	sessions := &mockSessions{}
	sessions.On("Prompt", mock.Anything, "autoswarm", "anthropic/claude-sonnet-4",
		"## SYSTEM\nbe terse\n\n## USER\nhi").
		Return([]string{"hel", "lo"}, nil)

	c := &OpencodeCompleter{sessions: sessions, logger: slog.Default()}

	var streamed []string
	resp, err := c.Complete(context.Background(), Request{
		Model: "anthropic/claude-sonnet-4",
		Messages: []Message{
			{Role: RoleSystem, Content: "be terse"},
			{Role: RoleUser, Content: "hi"},
		},
		OnStream: func(s string) { streamed = append(streamed, s) },
	})

	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Content)
	assert.Equal(t, []string{"hello"}, streamed)
	sessions.AssertExpectations(t)
}

func TestOpencodeCompleter_JSONModeAddsInstruction(t *testing.T) {
	sessions := &mockSessions{}
	sessions.On("Prompt", mock.Anything, "autoswarm", "", mock.MatchedBy(func(text string) bool {
		return strings.HasSuffix(text, "nothing else.")
	})).Return([]string{`{"a":1}`}, nil)

	c := &OpencodeCompleter{sessions: sessions, logger: slog.Default()}

	resp, err := c.Complete(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "json"}},
		JSONMode: true,
	})

	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, resp.Content)
}

func TestOpencodeCompleter_Error(t *testing.T) {
	sessions := &mockSessions{}
	sessions.On("Prompt", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("failed to create session: refused"))

	c := &OpencodeCompleter{sessions: sessions, logger: slog.Default()}

	_, err := c.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "refused")
}
