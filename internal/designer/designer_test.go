// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package designer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoswarm/internal/llm"
	"autoswarm/internal/tools"
	"autoswarm/pkg/dag"
	"autoswarm/pkg/types"
)

const threeAgentPlan = `{
  "todos": [
    {"description": "Research the topic", "dependencies": [], "parallelizable": true},
    {"description": "Collect examples", "dependencies": [], "parallelizable": true},
    {"description": "Write the article", "dependencies": ["Research the topic", "Collect examples", "Unknown step"], "parallelizable": false}
  ],
  "agents": [
    {"name": "Researcher", "role": "researcher", "skill": "# Researcher", "tools": ["web_search"], "todoIndices": [0], "dependsOn": []},
    {"name": "Collector", "role": "analyst", "skill": "# Collector", "tools": [], "todoIndices": [1, 7], "dependsOn": []},
    {"name": "Writer", "role": "writer", "skill": "# Writer", "tools": ["context_read"], "todoIndices": [2], "dependsOn": ["Researcher", "Collector", "Ghost"]}
  ]
}`

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%08x-0000-4000-8000-000000000000", n)
	}
}

type capture struct {
	req llm.Request
}

func (c *capture) completer(content string) llm.Completer {
	return llm.CompleterFunc(func(_ context.Context, req llm.Request) (*llm.Response, error) {
		c.req = req
		return &llm.Response{Content: content}, nil
	})
}

func newTestDesigner(c llm.Completer, progress *[]string) *Designer {
	return New(c, Options{
		Model:      "test/model",
		NewID:      sequentialIDs(),
		Now:        func() time.Time { return time.Unix(1700000000, 0) },
		OnProgress: func(m string) { *progress = append(*progress, m) },
	})
}

func TestDesign_BuildsTopology(t *testing.T) {
	var progress []string
	c := &capture{}
	d := newTestDesigner(c.completer(threeAgentPlan), &progress)

	design, err := d.Design(context.Background(), "Write an article about Go", []tools.Tool{{Name: "web_search", Description: "Search the web"}})
	require.NoError(t, err)

	assert.True(t, c.req.JSONMode)
	assert.Equal(t, "test/model", c.req.Model)
	assert.Contains(t, c.req.Messages[0].Content, "- web_search: Search the web")
	assert.Equal(t, "Design a multi-agent swarm for this task:\n\nWrite an article about Go", c.req.Messages[1].Content)
	assert.Equal(t, []string{"Analyzing task complexity...", "Building topology...", "Design complete!"}, progress)

	assert.Equal(t, "Write an article about Go", design.TaskDescription)
	assert.Equal(t, "test/model", design.ModelUsed)
	assert.NoError(t, design.Validate())

	require.Len(t, design.Todos, 3)
	assert.Equal(t, "todo-2", design.Todos[2].ID)
	assert.Equal(t, []string{"todo-0", "todo-1"}, design.Todos[2].Dependencies)
	assert.Equal(t, types.TodoStatusPending, design.Todos[0].Status)

	nodes := design.Topology.Nodes
	require.Len(t, nodes, 3)
	researcher, collector, writer := nodes[0], nodes[1], nodes[2]

	assert.Equal(t, "agent-00000001", researcher.ID)
	assert.Equal(t, []string{"web_search", tools.ContextRead, tools.ContextWrite}, researcher.Tools)
	assert.Equal(t, []string{tools.ContextRead, tools.ContextWrite}, writer.Tools)
	assert.Equal(t, []string{researcher.ID}, design.Todos[0].AssignedNodeIDs)
	assert.Equal(t, []string{collector.ID}, design.Todos[1].AssignedNodeIDs)

	assert.Equal(t, []types.Mapping{
		{From: "context.Researcher", To: "Researcher"},
		{From: "context.Collector", To: "Collector"},
		{From: "context.Ghost", To: "Ghost"},
	}, writer.InputMappings)
	assert.Equal(t, []types.Mapping{{From: "output", To: "context.Writer"}}, writer.OutputMappings)

	require.Len(t, design.Topology.Edges, 2)
	assert.Equal(t, types.Edge{
		ID:     "edge-" + researcher.ID + "-" + writer.ID,
		Source: researcher.ID,
		Target: writer.ID,
		Label:  "data",
	}, design.Topology.Edges[0])

	assert.Equal(t, [][]string{{researcher.ID, collector.ID}, {writer.ID}}, design.Topology.ParallelGroups)
	assert.NoError(t, dag.Verify(nodes, design.Topology.Edges, design.Topology.ParallelGroups))
}

func TestDesign_NoToolsMentionsBuiltins(t *testing.T) {
	var progress []string
	c := &capture{}
	d := newTestDesigner(c.completer(`{"todos": [], "agents": [{"name": "Solo", "role": "writer", "skill": "s"}]}`), &progress)

	design, err := d.Design(context.Background(), "haiku", nil)
	require.NoError(t, err)

	assert.Contains(t, c.req.Messages[0].Content, noExternalTools)
	require.Len(t, design.Topology.Nodes, 1)
	assert.Empty(t, design.Topology.Edges)
	assert.Equal(t, [][]string{{design.Topology.Nodes[0].ID}}, design.Topology.ParallelGroups)
}

func TestDesign_DuplicateAndBlankNamesAreMadeUnique(t *testing.T) {
	var progress []string
	c := &capture{}
	d := newTestDesigner(c.completer(`{"agents": [
		{"name": "Writer"}, {"name": "Writer"}, {"name": "  "}, {"name": "__task__"}
	]}`), &progress)

	design, err := d.Design(context.Background(), "x", nil)
	require.NoError(t, err)

	var names []string
	for _, n := range design.Topology.Nodes {
		names = append(names, n.Name)
	}
	assert.Equal(t, []string{"Writer", "Writer 2", "Agent 3", "__task__ 2"}, names)
	assert.NoError(t, design.Validate())
}

func TestDesign_Errors(t *testing.T) {
	tests := []struct {
		name      string
		task      string
		completer llm.Completer
		wantIs    error
	}{
		{
			name:      "blank task",
			task:      "  ",
			completer: llm.CompleterFunc(func(context.Context, llm.Request) (*llm.Response, error) { return nil, nil }),
		},
		{
			name: "collaborator failure",
			task: "t",
			completer: llm.CompleterFunc(func(context.Context, llm.Request) (*llm.Response, error) {
				return nil, &llm.APIError{Provider: "OpenRouter", StatusCode: 401, Message: "bad key"}
			}),
		},
		{
			name: "malformed json",
			task: "t",
			completer: llm.CompleterFunc(func(context.Context, llm.Request) (*llm.Response, error) {
				return &llm.Response{Content: "sorry, no"}, nil
			}),
			wantIs: llm.ErrMalformedJSON,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var progress []string
			_, err := newTestDesigner(tt.completer, &progress).Design(context.Background(), tt.task, nil)
			require.Error(t, err)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
		})
	}

	var apiErr *llm.APIError
	var progress []string
	_, err := newTestDesigner(tests[1].completer, &progress).Design(context.Background(), "t", nil)
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 401, apiErr.StatusCode)
}

func TestRefine_KeepsTaskAndSendsCurrentDesign(t *testing.T) {
	var progress []string
	first := &capture{}
	d := newTestDesigner(first.completer(threeAgentPlan), &progress)
	current, err := d.Design(context.Background(), "Write an article", nil)
	require.NoError(t, err)

	progress = nil
	second := &capture{}
	d = newTestDesigner(second.completer(`{"todos": [], "agents": [
		{"name": "Researcher", "role": "researcher", "skill": "# R"},
		{"name": "Editor", "role": "reviewer", "skill": "# E", "dependsOn": ["Researcher"]}
	]}`), &progress)

	refined, err := d.Refine(context.Background(), current, "Replace the writer with an editor", nil)
	require.NoError(t, err)

	system := second.req.Messages[0].Content
	assert.Contains(t, system, `"taskDescription": "Write an article"`)
	assert.Contains(t, system, `"dependsOn": [`+"\n"+`        "Researcher",`)
	assert.True(t, strings.HasSuffix(second.req.Messages[1].Content, "Replace the writer with an editor"))
	assert.Equal(t, []string{"Analyzing refinement request...", "Rebuilding topology...", "Refinement complete!"}, progress)

	assert.Equal(t, "Write an article", refined.TaskDescription)
	require.Len(t, refined.Topology.Nodes, 2)
	assert.Equal(t, "Editor", refined.Topology.Nodes[1].Name)
	require.Len(t, refined.Topology.Edges, 1)
	assert.Len(t, refined.Topology.ParallelGroups, 2)
}

func TestRefine_RequiresInputs(t *testing.T) {
	var progress []string
	d := newTestDesigner(llm.CompleterFunc(func(context.Context, llm.Request) (*llm.Response, error) {
		return &llm.Response{Content: "{}"}, nil
	}), &progress)

	_, err := d.Refine(context.Background(), nil, "change", nil)
	assert.Error(t, err)

	_, err = d.Refine(context.Background(), &types.Design{}, "", nil)
	assert.Error(t, err)
}
