// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package main

import (
	"fmt"
	"io"
	"sort"
	"time"

	"autoswarm/pkg/types"
)

// consoleListener prints engine notifications for a terminal. The engine
// serializes calls, so it writes without locking.
type consoleListener struct {
	out     io.Writer
	names   map[string]string
	showCtx bool
}

func newConsoleListener(out io.Writer, design *types.Design, showCtx bool) *consoleListener {
	names := make(map[string]string, len(design.Topology.Nodes))
	for _, n := range design.Topology.Nodes {
		names[n.ID] = n.Name
	}
	return &consoleListener{out: out, names: names, showCtx: showCtx}
}

func (c *consoleListener) OnNodeStatusChange(nodeID string, status types.NodeStatus, errText string) {
	if status == types.NodeStatusIdle {
		return
	}
	name := c.names[nodeID]
	if name == "" {
		name = nodeID
	}

	switch status {
	case types.NodeStatusFailed:
		fmt.Fprintf(c.out, "✗ %s failed: %s\n", name, errText)
	case types.NodeStatusCompleted:
		fmt.Fprintf(c.out, "✓ %s completed\n", name)
	default:
		fmt.Fprintf(c.out, "▶ %s %s\n", name, status)
	}
}

func (c *consoleListener) OnLog(entry types.LogEntry) {
	fmt.Fprintf(c.out, "%s [%s] %s: %s\n",
		entry.Timestamp.Format(time.TimeOnly), entry.Level, entry.NodeName, entry.Message)
}

func (c *consoleListener) OnContextUpdate(key string, entry types.ContextEntry) {
	if !c.showCtx {
		return
	}
	fmt.Fprintf(c.out, "  context %s <- %s\n", key, entry.ProducedBy)
}

// printSummary prints final node states in design order and the outputs of
// nodes nothing depends on.
func printSummary(out io.Writer, design *types.Design, states map[string]types.NodeExecutionState, ctxEntries map[string]types.ContextEntry) {
	fmt.Fprintln(out, "\nSummary")
	fmt.Fprintln(out, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	counts := make(map[types.NodeStatus]int)
	for _, n := range design.Topology.Nodes {
		st := states[n.ID]
		counts[st.Status]++
		line := fmt.Sprintf("%-24s %s", n.Name, st.Status)
		if st.Status.IsTerminal() && !st.StartTime.IsZero() {
			line += fmt.Sprintf(" (%s)", st.EndTime.Sub(st.StartTime).Round(time.Millisecond))
		}
		fmt.Fprintln(out, line)
	}

	statuses := make([]string, 0, len(counts))
	for s, n := range counts {
		statuses = append(statuses, fmt.Sprintf("%s=%d", s, n))
	}
	sort.Strings(statuses)
	fmt.Fprintf(out, "\nNodes: %v\n", statuses)

	for _, id := range sinkNodes(design) {
		entry, ok := ctxEntries[id]
		if !ok {
			continue
		}
		fmt.Fprintf(out, "\n## %s\n%v\n", design.Topology.NodeMap()[id].Name, entry.Value)
	}
}

// sinkNodes are the nodes without outgoing edges, in design order.
func sinkNodes(design *types.Design) []string {
	hasOut := make(map[string]bool)
	for _, e := range design.Topology.Edges {
		hasOut[e.Source] = true
	}
	var sinks []string
	for _, n := range design.Topology.Nodes {
		if !hasOut[n.ID] {
			sinks = append(sinks, n.ID)
		}
	}
	return sinks
}
