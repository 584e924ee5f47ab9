// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

// Package dag partitions an agent graph into ordered batches of nodes that
// can run concurrently.
package dag

import (
	"errors"
	"fmt"

	"github.com/gammazero/toposort"

	"autoswarm/pkg/types"
)

var (
	// ErrCycle is returned by strict batching when the graph has a cycle
	ErrCycle = errors.New("cycle detected in graph")

	// ErrDanglingEdge is returned by strict batching when an edge names an unknown node
	ErrDanglingEdge = errors.New("edge references unknown node")
)

// BuildBatches returns the batch order for nodes and edges.
//
// A node goes into the earliest batch in which every edge targeting it has
// its source in a strictly earlier batch. Batch 0 holds every node without
// incoming edges. Nodes that are never reached (a cycle, or an edge from an
// unknown node) are appended as trailing singleton batches in input order.
// Within a batch, nodes keep their input order.
func BuildBatches(nodes []types.Node, edges []types.Edge) [][]string {
	batches := make([][]string, 0)
	if len(nodes) == 0 {
		return batches
	}

	incoming := make(map[string][]string, len(nodes))
	for _, n := range nodes {
		incoming[n.ID] = nil
	}
	for _, e := range edges {
		if _, known := incoming[e.Target]; !known {
			continue
		}
		incoming[e.Target] = append(incoming[e.Target], e.Source)
	}

	placed := make(map[string]bool, len(nodes))

	first := make([]string, 0)
	for _, n := range nodes {
		if placed[n.ID] {
			continue
		}
		if len(incoming[n.ID]) == 0 {
			first = append(first, n.ID)
			placed[n.ID] = true
		}
	}

	current := first
	for len(current) > 0 {
		batches = append(batches, current)

		next := make([]string, 0)
		queued := make(map[string]bool)
		for _, n := range nodes {
			if placed[n.ID] || queued[n.ID] {
				continue
			}
			if allPlaced(incoming[n.ID], placed) {
				next = append(next, n.ID)
				queued[n.ID] = true
			}
		}
		for _, id := range next {
			placed[id] = true
		}
		current = next
	}

	for _, n := range nodes {
		if !placed[n.ID] {
			batches = append(batches, []string{n.ID})
			placed[n.ID] = true
		}
	}

	return batches
}

// allPlaced reports whether every source already sits in an earlier batch.
func allPlaced(sources []string, placed map[string]bool) bool {
	for _, src := range sources {
		if !placed[src] {
			return false
		}
	}
	return true
}

// BuildBatchesStrict is BuildBatches for graphs that must be well formed.
// It fails on dangling edges and cycles instead of demoting the affected
// nodes to trailing singletons.
func BuildBatchesStrict(nodes []types.Node, edges []types.Edge) ([][]string, error) {
	if err := DetectCycle(nodes, edges); err != nil {
		return nil, err
	}
	return BuildBatches(nodes, edges), nil
}

// DetectCycle checks that every edge joins two known nodes and that the
// graph is acyclic.
func DetectCycle(nodes []types.Node, edges []types.Edge) error {
	known := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		known[n.ID] = true
	}

	sortEdges := make([]toposort.Edge, 0, len(edges))
	for _, e := range edges {
		if !known[e.Source] || !known[e.Target] {
			return fmt.Errorf("%w: %s -> %s", ErrDanglingEdge, e.Source, e.Target)
		}
		if e.Source == e.Target {
			return fmt.Errorf("%w: self-loop on %s", ErrCycle, e.Source)
		}
		sortEdges = append(sortEdges, toposort.Edge{e.Source, e.Target})
	}

	if len(sortEdges) == 0 {
		return nil
	}

	if _, err := toposort.Toposort(sortEdges); err != nil {
		return fmt.Errorf("%w: %w", ErrCycle, err)
	}
	return nil
}

// Verify checks that batches form a valid schedule for nodes and edges:
// every node appears exactly once, no unknown ids appear, and every edge
// runs from an earlier batch to a later one.
func Verify(nodes []types.Node, edges []types.Edge, batches [][]string) error {
	index := make(map[string]int, len(nodes))
	for i, batch := range batches {
		for _, id := range batch {
			if _, dup := index[id]; dup {
				return fmt.Errorf("node %s appears in more than one batch", id)
			}
			index[id] = i
		}
	}

	for _, n := range nodes {
		if _, ok := index[n.ID]; !ok {
			return fmt.Errorf("node %s is not scheduled", n.ID)
		}
	}
	if len(index) != len(nodes) {
		return fmt.Errorf("schedule has %d nodes, graph has %d", len(index), len(nodes))
	}

	for _, e := range edges {
		src, okSrc := index[e.Source]
		dst, okDst := index[e.Target]
		if !okSrc || !okDst {
			continue
		}
		if src >= dst {
			return fmt.Errorf("edge %s -> %s is not ordered (batch %d >= %d)", e.Source, e.Target, src, dst)
		}
	}
	return nil
}
