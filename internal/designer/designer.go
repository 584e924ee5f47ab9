// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

// Package designer asks the collaborator to plan a task as todos and a
// team of agents, and turns the answer into an executable design.
package designer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"autoswarm/internal/llm"
	"autoswarm/internal/tools"
	"autoswarm/pkg/dag"
	"autoswarm/pkg/types"
)

// plannedTodo and plannedAgent mirror the JSON the collaborator is asked for.
type plannedTodo struct {
	Description    string   `json:"description"`
	Dependencies   []string `json:"dependencies"`
	Parallelizable bool     `json:"parallelizable"`
}

type plannedAgent struct {
	Name        string   `json:"name"`
	Role        string   `json:"role"`
	Skill       string   `json:"skill"`
	Tools       []string `json:"tools"`
	TodoIndices []int    `json:"todoIndices"`
	DependsOn   []string `json:"dependsOn"`
}

type plan struct {
	Todos  []plannedTodo  `json:"todos"`
	Agents []plannedAgent `json:"agents"`
}

// Options configures a Designer.
type Options struct {
	Model       string
	Temperature float32
	MaxTokens   int
	Logger      *slog.Logger

	// OnProgress receives short human-readable progress messages
	OnProgress func(message string)

	// NewID and Now are overridable for tests
	NewID func() string
	Now   func() time.Time
}

// Designer builds designs through a collaborator.
type Designer struct {
	completer llm.Completer
	opts      Options
	logger    *slog.Logger
}

// New creates a designer.
func New(completer llm.Completer, opts Options) *Designer {
	if opts.Model == "" {
		opts.Model = llm.DefaultModel
	}
	if opts.Temperature == 0 {
		opts.Temperature = llm.DefaultTemperature
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = llm.DefaultMaxTokens
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Designer{completer: completer, opts: opts, logger: logger}
}

// Design plans task from scratch. available lists the external tools the
// agents may be given.
func (d *Designer) Design(ctx context.Context, task string, available []tools.Tool) (*types.Design, error) {
	if strings.TrimSpace(task) == "" {
		return nil, fmt.Errorf("task description is required")
	}

	d.progress("Analyzing task complexity...")

	p, err := d.ask(ctx, designSystemPrompt(available), designUserPrompt(task))
	if err != nil {
		return nil, fmt.Errorf("failed to design swarm: %w", err)
	}

	d.progress("Building topology...")
	design := d.build(task, p)
	d.progress("Design complete!")

	d.logger.Info("Designed swarm",
		"design_id", design.ID,
		"todos", len(design.Todos),
		"agents", len(design.Topology.Nodes),
		"batches", len(design.Topology.ParallelGroups))
	return design, nil
}

// Refine rebuilds current according to request. The task text is kept;
// ids are regenerated.
func (d *Designer) Refine(ctx context.Context, current *types.Design, request string, available []tools.Tool) (*types.Design, error) {
	if current == nil {
		return nil, fmt.Errorf("current design is required")
	}
	if strings.TrimSpace(request) == "" {
		return nil, fmt.Errorf("refinement request is required")
	}

	d.progress("Analyzing refinement request...")

	currentJSON, err := summarize(current)
	if err != nil {
		return nil, err
	}

	p, err := d.ask(ctx, refineSystemPrompt(currentJSON, available), refineUserPrompt(request))
	if err != nil {
		return nil, fmt.Errorf("failed to refine swarm: %w", err)
	}

	d.progress("Rebuilding topology...")
	design := d.build(current.TaskDescription, p)
	d.progress("Refinement complete!")

	d.logger.Info("Refined swarm",
		"design_id", design.ID,
		"previous_design_id", current.ID,
		"agents", len(design.Topology.Nodes))
	return design, nil
}

func (d *Designer) ask(ctx context.Context, system, user string) (plan, error) {
	return llm.CompleteJSON[plan](ctx, d.completer, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: system},
			{Role: llm.RoleUser, Content: user},
		},
		Model:       d.opts.Model,
		Temperature: d.opts.Temperature,
		MaxTokens:   d.opts.MaxTokens,
	})
}

// build turns a plan into a design: todo ids by position, one node per
// agent, one edge per resolvable dependency, and batches from the graph.
func (d *Designer) build(task string, p plan) *types.Design {
	todos := make([]types.TodoItem, len(p.Todos))
	for i, t := range p.Todos {
		todos[i] = types.TodoItem{
			ID:              fmt.Sprintf("todo-%d", i),
			Description:     t.Description,
			Status:          types.TodoStatusPending,
			AssignedNodeIDs: []string{},
			Dependencies:    todoDependencies(p.Todos, t.Dependencies),
		}
	}

	nodes := make([]types.Node, 0, len(p.Agents))
	byName := make(map[string]string, len(p.Agents))
	for i, a := range p.Agents {
		name := uniqueName(a.Name, i, byName)
		id := "agent-" + shortID(d.opts.NewID())
		byName[name] = id

		for _, idx := range a.TodoIndices {
			if idx >= 0 && idx < len(todos) {
				todos[idx].AssignedNodeIDs = append(todos[idx].AssignedNodeIDs, id)
			}
		}

		agentTools := slices.Clone(a.Tools)
		for _, builtin := range []string{tools.ContextRead, tools.ContextWrite} {
			if !slices.Contains(agentTools, builtin) {
				agentTools = append(agentTools, builtin)
			}
		}

		inputs := make([]types.Mapping, 0, len(a.DependsOn))
		for _, dep := range a.DependsOn {
			inputs = append(inputs, types.Mapping{From: "context." + dep, To: dep})
		}

		nodes = append(nodes, types.Node{
			ID:             id,
			Name:           name,
			Role:           a.Role,
			SkillMarkdown:  a.Skill,
			Tools:          agentTools,
			InputMappings:  inputs,
			OutputMappings: []types.Mapping{{From: "output", To: "context." + name}},
		})
	}

	var edges []types.Edge
	for _, n := range nodes {
		for _, m := range n.InputMappings {
			src, ok := byName[m.To]
			if !ok || src == n.ID {
				continue
			}
			edges = append(edges, types.Edge{
				ID:     fmt.Sprintf("edge-%s-%s", src, n.ID),
				Source: src,
				Target: n.ID,
				Label:  "data",
			})
		}
	}

	return &types.Design{
		ID:              d.opts.NewID(),
		CreatedAt:       d.opts.Now(),
		TaskDescription: task,
		ModelUsed:       d.opts.Model,
		Todos:           todos,
		Topology: types.Topology{
			Nodes:          nodes,
			Edges:          edges,
			ParallelGroups: dag.BuildBatches(nodes, edges),
		},
	}
}

// todoDependencies resolves dependency descriptions to todo ids. Unknown
// descriptions are dropped.
func todoDependencies(all []plannedTodo, deps []string) []string {
	ids := make([]string, 0, len(deps))
	for _, dep := range deps {
		idx := slices.IndexFunc(all, func(t plannedTodo) bool { return t.Description == dep })
		if idx >= 0 {
			ids = append(ids, fmt.Sprintf("todo-%d", idx))
		}
	}
	return ids
}

// uniqueName keeps agent names distinct so that every node owns its
// context keys.
func uniqueName(name string, index int, taken map[string]string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = fmt.Sprintf("Agent %d", index+1)
	}
	if _, dup := taken[name]; !dup && name != types.TaskContextKey {
		return name
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s %d", name, n)
		if _, dup := taken[candidate]; !dup {
			return candidate
		}
	}
}

func shortID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// summarize renders the parts of a design the collaborator needs to
// refine it, with dependencies expressed by agent name.
func summarize(design *types.Design) (string, error) {
	type agentSummary struct {
		ID        string   `json:"id"`
		Name      string   `json:"name"`
		Role      string   `json:"role"`
		Skill     string   `json:"skill"`
		Tools     []string `json:"tools"`
		DependsOn []string `json:"dependsOn"`
	}

	nodes := design.Topology.NodeMap()
	agents := make([]agentSummary, 0, len(design.Topology.Nodes))
	for _, n := range design.Topology.Nodes {
		deps := []string{}
		for _, e := range design.Topology.Edges {
			if e.Target != n.ID {
				continue
			}
			if src, ok := nodes[e.Source]; ok {
				deps = append(deps, src.Name)
			} else {
				deps = append(deps, e.Source)
			}
		}
		agents = append(agents, agentSummary{
			ID:        n.ID,
			Name:      n.Name,
			Role:      n.Role,
			Skill:     n.SkillMarkdown,
			Tools:     n.Tools,
			DependsOn: deps,
		})
	}

	out, err := json.MarshalIndent(map[string]any{
		"taskDescription": design.TaskDescription,
		"agents":          agents,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode current design: %w", err)
	}
	return string(out), nil
}

func (d *Designer) progress(message string) {
	if d.opts.OnProgress != nil {
		d.opts.OnProgress(message)
	}
}
