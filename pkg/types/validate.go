// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package types

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidDesign is returned when a design cannot be executed.
var ErrInvalidDesign = errors.New("invalid design")

// Reserved context keys. Node ids and names must not collide with them.
const (
	// TaskContextKey holds the original task text for every run
	TaskContextKey = "__task__"

	// TerminateContextKey stops a run after the current batch once written
	TerminateContextKey = "__TERMINATE__"
)

var designValidate = validator.New()

// Validate checks the structural preconditions the engine relies on:
// required fields, unique node ids and unique node names. Edges that
// reference unknown nodes and cycles are left to the batcher.
func (d *Design) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: design is nil", ErrInvalidDesign)
	}

	if err := designValidate.Struct(d); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDesign, err)
	}

	ids := make(map[string]bool, len(d.Topology.Nodes))
	names := make(map[string]bool, len(d.Topology.Nodes))
	for _, n := range d.Topology.Nodes {
		if ids[n.ID] {
			return fmt.Errorf("%w: duplicate node id %q", ErrInvalidDesign, n.ID)
		}
		if names[n.Name] {
			return fmt.Errorf("%w: duplicate node name %q", ErrInvalidDesign, n.Name)
		}
		if n.ID == TaskContextKey || n.Name == TaskContextKey {
			return fmt.Errorf("%w: node %q uses reserved key %s", ErrInvalidDesign, n.ID, TaskContextKey)
		}
		ids[n.ID] = true
		names[n.Name] = true
	}

	// Each node writes its id and name keys; they must not alias another node's.
	for _, n := range d.Topology.Nodes {
		if n.Name != n.ID && ids[n.Name] {
			return fmt.Errorf("%w: node name %q collides with a node id", ErrInvalidDesign, n.Name)
		}
	}

	return nil
}

// NodeMap indexes the topology's nodes by id.
func (t *Topology) NodeMap() map[string]Node {
	m := make(map[string]Node, len(t.Nodes))
	for _, n := range t.Nodes {
		m[n.ID] = n
	}
	return m
}
