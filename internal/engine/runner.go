// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"autoswarm/internal/llm"
	"autoswarm/internal/telemetry"
	"autoswarm/pkg/types"
)

// errNoResponse is a node failure for a collaborator that returned nothing.
var errNoResponse = errors.New("collaborator returned no response")

// executeNode runs one agent. Every failure is recorded on the node and
// never escapes to the batch.
func (e *Engine) executeNode(ctx context.Context, node types.Node, design *types.Design, batch int) {
	ctx, span := e.tracer.Start(ctx, "engine.node",
		trace.WithAttributes(telemetry.NodeAttrs(node.ID, node.Name, node.Role)...))
	defer span.End()

	started := e.markRunning(node.ID)
	e.opts.Metrics.NodeStarted()
	e.log(ctx, node, types.LogLevelInfo, fmt.Sprintf("Starting agent: %s (%s)", node.Name, node.Role), "batch", batch)

	result, err := e.runAgent(ctx, node, design)
	if err != nil {
		telemetry.RecordError(span, err)
		e.log(ctx, node, types.LogLevelError, fmt.Sprintf("Agent %s failed: %s", node.Name, err))
		ended := e.settle(node.ID, types.NodeStatusFailed, err.Error())
		e.opts.Metrics.NodeFinished(string(types.NodeStatusFailed), ended.Sub(started))
		span.SetAttributes(telemetry.AttrNodeStatus.String(string(types.NodeStatusFailed)))
		return
	}

	e.writeOutputs(node, result)
	span.SetAttributes(
		telemetry.AttrResponseLength.Int(len(result)),
		telemetry.AttrNodeStatus.String(string(types.NodeStatusCompleted)),
	)

	e.log(ctx, node, types.LogLevelInfo, fmt.Sprintf("Agent %s completed successfully", node.Name))
	ended := e.settle(node.ID, types.NodeStatusCompleted, "")
	e.opts.Metrics.NodeFinished(string(types.NodeStatusCompleted), ended.Sub(started))
}

// runAgent resolves the node's inputs, composes its prompt and calls the
// collaborator. It returns the node's output text.
func (e *Engine) runAgent(ctx context.Context, node types.Node, design *types.Design) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("agent panicked: %v", r)
		}
	}()

	inputs := e.resolveInputs(node)
	payload, err := json.MarshalIndent(inputs, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode inputs: %w", err)
	}

	req := llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: buildAgentPrompt(node, design.Todos, e.store.Keys())},
			{Role: llm.RoleUser, Content: buildUserMessage(design.TaskDescription, payload)},
		},
		Model:       e.model(design),
		Temperature: e.opts.Temperature,
		MaxTokens:   e.opts.MaxTokens,
	}

	var streamed strings.Builder
	if !e.opts.DisableStreaming {
		req.OnStream = func(chunk string) {
			streamed.WriteString(chunk)
		}
	}

	e.log(ctx, node, types.LogLevelInfo, "Calling LLM...", "model", req.Model)

	resp, err := e.completer.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", errNoResponse
	}
	if resp.Content != "" {
		return resp.Content, nil
	}
	return streamed.String(), nil
}

// resolveInputs binds each input mapping whose source key is present in
// the context store. Missing keys are skipped. The task text is always
// bound under TaskInputName.
func (e *Engine) resolveInputs(node types.Node) map[string]any {
	inputs := make(map[string]any, len(node.InputMappings)+1)

	for _, m := range node.InputMappings {
		key := strings.TrimPrefix(m.From, ContextKeyPrefix)
		if entry, ok := e.store.Get(key); ok {
			inputs[m.To] = entry.Value
		}
	}

	if task, ok := e.store.Get(types.TaskContextKey); ok {
		inputs[TaskInputName] = task.Value
	}
	return inputs
}

// outputKeys are the context keys a node writes: its id, its name, and the
// destinations of output mappings sourced from "output".
func outputKeys(node types.Node) []string {
	keys := []string{node.ID, node.Name}
	seen := map[string]bool{node.ID: true, node.Name: true}

	for _, m := range node.OutputMappings {
		if m.From != "" && m.From != "output" {
			continue
		}
		key := strings.TrimPrefix(m.To, ContextKeyPrefix)
		if key == "" || key == types.TaskContextKey || seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}
	return keys
}

func (e *Engine) writeOutputs(node types.Node, result string) {
	for _, key := range outputKeys(node) {
		e.setContext(key, types.ContextEntry{
			Value:      result,
			ProducedBy: node.ID,
			Timestamp:  e.now(),
			Type:       types.ContextEntryIntermediate,
		})
	}
}

func (e *Engine) model(design *types.Design) string {
	switch {
	case e.opts.Model != "":
		return e.opts.Model
	case design.ModelUsed != "":
		return design.ModelUsed
	default:
		return llm.DefaultModel
	}
}

// markRunning moves a node to running and returns its start time.
func (e *Engine) markRunning(nodeID string) (started time.Time) {
	started = e.now()

	e.mu.Lock()
	if st, ok := e.states[nodeID]; ok {
		st.Status = types.NodeStatusRunning
		st.StartTime = started
		st.EndTime = time.Time{}
		st.Error = ""
	}
	e.mu.Unlock()

	e.notify(func(l Listener) { l.OnNodeStatusChange(nodeID, types.NodeStatusRunning, "") })
	return started
}

// settle moves a node to a terminal status and returns its end time.
func (e *Engine) settle(nodeID string, status types.NodeStatus, errText string) (ended time.Time) {
	ended = e.now()

	e.mu.Lock()
	if st, ok := e.states[nodeID]; ok {
		st.Status = status
		st.EndTime = ended
		st.Error = errText
	}
	e.mu.Unlock()

	e.notify(func(l Listener) { l.OnNodeStatusChange(nodeID, status, errText) })
	return ended
}

// log writes a node log line to slog and to the listener.
func (e *Engine) log(ctx context.Context, node types.Node, level types.LogLevel, message string, attrs ...any) {
	attrs = append([]any{"node_id", node.ID, "node_name", node.Name}, attrs...)
	e.logger.Log(ctx, slogLevel(level), message, attrs...)

	entry := types.LogEntry{
		Timestamp: e.now(),
		NodeID:    node.ID,
		NodeName:  node.Name,
		Message:   message,
		Level:     level,
	}
	e.notify(func(l Listener) { l.OnLog(entry) })
}

func slogLevel(level types.LogLevel) slog.Level {
	switch level {
	case types.LogLevelDebug:
		return slog.LevelDebug
	case types.LogLevelWarn:
		return slog.LevelWarn
	case types.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
