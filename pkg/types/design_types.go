// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

// Package types provides the shared graph model used across AutoSwarm.
//
// This package contains the design, graph and execution-state types shared
// by the batcher, the context store, the engine and the designer. Types here
// should be:
// - Pure data structures (validation aside, no behavior)
// - Serializable as JSON and YAML
// - Free of imports from internal packages
package types

import "time"

// ============================================================================
// STATUS ENUMERATIONS
// ============================================================================

// NodeStatus is the observed execution status of a single node.
type NodeStatus string

const (
	NodeStatusIdle      NodeStatus = "idle"
	NodeStatusRunning   NodeStatus = "running"
	NodeStatusCompleted NodeStatus = "completed"
	NodeStatusFailed    NodeStatus = "failed"
)

// IsTerminal reports whether the status is completed or failed.
func (s NodeStatus) IsTerminal() bool {
	return s == NodeStatusCompleted || s == NodeStatusFailed
}

// ExecutionStatus is the status of a whole run.
type ExecutionStatus string

const (
	ExecutionStatusIdle      ExecutionStatus = "idle"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusPaused    ExecutionStatus = "paused"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// TodoStatus tracks a todo item. It is informational only.
type TodoStatus string

const (
	TodoStatusPending    TodoStatus = "pending"
	TodoStatusInProgress TodoStatus = "in_progress"
	TodoStatusCompleted  TodoStatus = "completed"
	TodoStatusFailed     TodoStatus = "failed"
)

// ContextEntryType classifies a value held in the context store.
type ContextEntryType string

const (
	ContextEntryIntermediate  ContextEntryType = "intermediate"
	ContextEntryFinal         ContextEntryType = "final"
	ContextEntryFileReference ContextEntryType = "file_reference"
)

// LogLevel is the severity of a log entry emitted to engine listeners.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// ============================================================================
// GRAPH MODEL
// ============================================================================

// Mapping routes a value between a context key and a node-local name.
// Input mappings read From a context key (optionally prefixed with
// "context.") and bind the value under To.
type Mapping struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// Node is one configured agent in the graph.
type Node struct {
	// ID is unique within the design and is also a context key
	ID string `json:"id" yaml:"id" validate:"required"`

	// Name is unique within the design and is used as a context alias
	Name string `json:"name" yaml:"name" validate:"required"`

	// Role is a short tag such as researcher, coder or writer
	Role string `json:"role" yaml:"role"`

	// SkillMarkdown is the agent's system prompt
	SkillMarkdown string `json:"skillMarkdown" yaml:"skill"`

	// Tools lists tool names the agent may reference
	Tools []string `json:"tools" yaml:"tools"`

	ParallelGroup  string    `json:"parallelGroup,omitempty" yaml:"parallel_group,omitempty"`
	InputMappings  []Mapping `json:"inputMappings" yaml:"inputs"`
	OutputMappings []Mapping `json:"outputMappings" yaml:"outputs"`
}

// Edge is a data dependency from Source to Target.
type Edge struct {
	ID     string `json:"id" yaml:"id"`
	Source string `json:"source" yaml:"source" validate:"required"`
	Target string `json:"target" yaml:"target" validate:"required"`
	Label  string `json:"label,omitempty" yaml:"label,omitempty"`
}

// Topology is the graph of a design together with its batch order.
type Topology struct {
	Nodes []Node `json:"nodes" yaml:"nodes" validate:"dive"`
	Edges []Edge `json:"edges" yaml:"edges" validate:"dive"`

	// ParallelGroups is the ordered batch list; each inner slice holds node IDs
	ParallelGroups [][]string `json:"parallelGroups" yaml:"parallel_groups"`
}

// TodoItem is a unit of planned work. The engine only uses it to compose
// prompts for the assigned nodes.
type TodoItem struct {
	ID              string     `json:"id" yaml:"id"`
	Description     string     `json:"description" yaml:"description"`
	Status          TodoStatus `json:"status" yaml:"status"`
	AssignedNodeIDs []string   `json:"assignedNodeIds" yaml:"assigned_node_ids"`
	Dependencies    []string   `json:"dependencies" yaml:"dependencies"`
}

// Design bundles the task, the todo list and the graph to execute.
// The engine reads a design but never mutates it.
type Design struct {
	ID              string     `json:"id" yaml:"id"`
	CreatedAt       time.Time  `json:"createdAt" yaml:"created_at"`
	TaskDescription string     `json:"taskDescription" yaml:"task"`
	ModelUsed       string     `json:"modelUsed" yaml:"model"`
	Todos           []TodoItem `json:"todos" yaml:"todos"`
	Topology        Topology   `json:"topology" yaml:"topology"`
}

// ============================================================================
// EXECUTION STATE
// ============================================================================

// ContextEntry is a value produced during a run.
type ContextEntry struct {
	// Value is text or a structured payload
	Value      any              `json:"value"`
	ProducedBy string           `json:"producedBy"`
	Timestamp  time.Time        `json:"timestamp"`
	Type       ContextEntryType `json:"type"`
}

// NodeExecutionState is the per-node status of the current run.
// StartTime and EndTime are zero until the node starts and settles.
type NodeExecutionState struct {
	NodeID    string     `json:"nodeId"`
	Status    NodeStatus `json:"status"`
	StartTime time.Time  `json:"startTime,omitempty"`
	EndTime   time.Time  `json:"endTime,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// LogEntry is a log line emitted to engine listeners.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	NodeID    string    `json:"nodeId"`
	NodeName  string    `json:"nodeName"`
	Message   string    `json:"message"`
	Level     LogLevel  `json:"level"`
}
