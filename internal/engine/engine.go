// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

// Package engine executes an agent design batch by batch under a shared
// context store, with cooperative pause, resume and abort.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"autoswarm/internal/llm"
	"autoswarm/internal/metrics"
	"autoswarm/internal/telemetry"
	"autoswarm/pkg/dag"
	"autoswarm/pkg/store"
	"autoswarm/pkg/types"
)

const (
	// ContextKeyPrefix is stripped from input mapping sources before lookup
	ContextKeyPrefix = "context."

	// TaskInputName is the input name every node receives the task under
	TaskInputName = "task"

	// SystemProducer is the producer recorded on the task entry
	SystemProducer = "system"
)

var (
	// ErrAlreadyRunning is returned by Execute while another run is active
	ErrAlreadyRunning = errors.New("engine is already running")

	// ErrRunFailed wraps faults in the orchestration itself. Individual
	// node failures never produce it.
	ErrRunFailed = errors.New("run failed")
)

// Options configures an Engine. The zero value is usable.
type Options struct {
	// Model overrides the design's model for every node
	Model       string
	Temperature float32
	MaxTokens   int

	// DisableStreaming requests whole responses instead of streamed deltas
	DisableStreaming bool

	// StrictBatching rejects cyclic graphs and dangling edges as a failed run
	StrictBatching bool

	// Store is the context store runs write to; a fresh store by default.
	// Sharing it lets built-in tools see the same context.
	Store *store.Store

	Logger  *slog.Logger
	Tracer  trace.Tracer
	Metrics *metrics.Recorder

	// Now is the clock; defaults to time.Now
	Now func() time.Time
}

// Engine runs designs. One Engine runs one design at a time; the context
// store and node states belong to the current run and are reset by the
// next Execute.
type Engine struct {
	completer llm.Completer
	listener  Listener
	opts      Options
	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time

	store *store.Store

	mu      sync.Mutex
	status  types.ExecutionStatus
	running bool
	paused  bool
	aborted bool
	resume  chan struct{} // closed to release a pending pause
	states  map[string]*types.NodeExecutionState

	// notifyMu serializes listener calls across concurrently running nodes
	notifyMu sync.Mutex
}

// New creates an engine that calls completer for every node and reports to
// listener, which may be nil.
func New(completer llm.Completer, listener Listener, opts Options) *Engine {
	e := &Engine{
		completer: completer,
		listener:  listener,
		opts:      opts,
		logger:    opts.Logger,
		tracer:    opts.Tracer,
		now:       opts.Now,
		store:     opts.Store,
		status:    types.ExecutionStatusIdle,
		states:    make(map[string]*types.NodeExecutionState),
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.tracer == nil {
		e.tracer = telemetry.GetTracer(telemetry.TracerName)
	}
	if e.store == nil {
		e.store = store.New()
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.opts.Temperature == 0 {
		e.opts.Temperature = llm.DefaultTemperature
	}
	if e.opts.MaxTokens <= 0 {
		e.opts.MaxTokens = llm.DefaultMaxTokens
	}
	return e
}

// Execute runs design to completion or until it is stopped early by Abort
// or by a node writing the terminate key. Node failures are recorded in
// node states and do not fail the run. The returned error wraps
// ErrRunFailed for an invalid design or a fault in scheduling, or is
// ErrAlreadyRunning. Cancelling ctx stops scheduling and fails the run.
func (e *Engine) Execute(ctx context.Context, design *types.Design) (err error) {
	if err := e.begin(); err != nil {
		return err
	}

	runID := uuid.NewString()
	logger := e.logger.With("run_id", runID)

	ctx, span := e.tracer.Start(ctx, "engine.execute",
		trace.WithAttributes(telemetry.AttrRunID.String(runID)))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: orchestration panic: %v", ErrRunFailed, r)
		}
		telemetry.RecordError(span, err)
		e.finish(logger, err)
	}()

	e.reset(design)

	if err := design.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrRunFailed, err)
	}
	span.SetAttributes(telemetry.AttrDesignID.String(design.ID))

	e.setContext(types.TaskContextKey, types.ContextEntry{
		Value:      design.TaskDescription,
		ProducedBy: SystemProducer,
		Timestamp:  e.now(),
		Type:       types.ContextEntryIntermediate,
	})

	batches, err := e.schedule(logger, design)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRunFailed, err)
	}

	logger.Info("Execution started",
		"design_id", design.ID,
		"nodes", len(design.Topology.Nodes),
		"batches", len(batches))

	nodeMap := design.Topology.NodeMap()
	for i, batch := range batches {
		if err := e.waitWhilePaused(ctx, logger, i); err != nil {
			return fmt.Errorf("%w: %w", ErrRunFailed, err)
		}
		if e.isAborted() {
			logger.Info("Execution aborted", "next_batch", i, "remaining_batches", len(batches)-i)
			return nil
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrRunFailed, err)
		}

		nodes := make([]types.Node, 0, len(batch))
		for _, id := range batch {
			nodes = append(nodes, nodeMap[id])
		}
		e.runBatch(ctx, logger, i, nodes, design)

		if e.store.Has(types.TerminateContextKey) {
			logger.Info("Terminate key written, stopping", "batch", i)
			return nil
		}
	}

	logger.Info("Execution finished", "batches", len(batches))
	return nil
}

// schedule returns the design's precomputed batches when they are a valid
// schedule for its graph, and otherwise batches the graph.
func (e *Engine) schedule(logger *slog.Logger, design *types.Design) ([][]string, error) {
	topo := design.Topology

	if e.opts.StrictBatching {
		if err := dag.DetectCycle(topo.Nodes, topo.Edges); err != nil {
			return nil, err
		}
	}

	if len(topo.ParallelGroups) > 0 {
		err := dag.Verify(topo.Nodes, topo.Edges, topo.ParallelGroups)
		if err == nil {
			return topo.ParallelGroups, nil
		}
		logger.Warn("Ignoring stale parallel groups", "error", err)
	}

	return dag.BuildBatches(topo.Nodes, topo.Edges), nil
}

// runBatch runs every node of a batch concurrently and waits for all of
// them to settle.
func (e *Engine) runBatch(ctx context.Context, logger *slog.Logger, index int, nodes []types.Node, design *types.Design) {
	ctx, span := e.tracer.Start(ctx, "engine.batch",
		trace.WithAttributes(telemetry.BatchAttrs(index, len(nodes))...))
	defer span.End()

	e.opts.Metrics.BatchStarted()
	logger.Debug("Starting batch", "batch", index, "size", len(nodes))

	var g errgroup.Group
	for _, node := range nodes {
		g.Go(func() error {
			e.executeNode(ctx, node, design, index)
			return nil
		})
	}
	_ = g.Wait()

	logger.Debug("Batch settled", "batch", index)
}

// Pause requests suspension before the next batch. The current batch is
// not interrupted.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running || e.paused {
		return
	}
	e.paused = true
	e.resume = make(chan struct{})
	e.status = types.ExecutionStatusPaused
}

// Resume releases a pending pause.
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.paused {
		return
	}
	e.releasePauseLocked()
	if e.running {
		e.status = types.ExecutionStatusRunning
	}
}

// Abort stops the run once the current batch settles, or immediately when
// paused. In-flight nodes run to completion and their results are kept.
func (e *Engine) Abort() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.aborted = true
	if e.paused {
		e.releasePauseLocked()
	}
}

func (e *Engine) releasePauseLocked() {
	e.paused = false
	if e.resume != nil {
		close(e.resume)
		e.resume = nil
	}
}

// waitWhilePaused blocks at a batch boundary until the pause is released,
// the run is aborted or ctx is done.
func (e *Engine) waitWhilePaused(ctx context.Context, logger *slog.Logger, nextBatch int) error {
	for {
		e.mu.Lock()
		if !e.paused {
			e.mu.Unlock()
			return nil
		}
		released := e.resume
		e.mu.Unlock()

		logger.Info("Execution paused", "next_batch", nextBatch)
		select {
		case <-released:
			logger.Info("Execution resumed", "next_batch", nextBatch)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (e *Engine) isAborted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.aborted
}

// Status returns the status of the current or last run.
func (e *Engine) Status() types.ExecutionStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// NodeStates returns a copy of every node's state in the current or last run.
func (e *Engine) NodeStates() map[string]types.NodeExecutionState {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]types.NodeExecutionState, len(e.states))
	for id, st := range e.states {
		out[id] = *st
	}
	return out
}

// Context returns a snapshot of the context store.
func (e *Engine) Context() map[string]types.ContextEntry {
	return e.store.Snapshot()
}

// ContextKeys returns the context store's keys in insertion order.
func (e *Engine) ContextKeys() []string {
	return e.store.Keys()
}

func (e *Engine) begin() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return ErrAlreadyRunning
	}
	e.running = true
	e.paused = false
	e.aborted = false
	e.resume = nil
	e.status = types.ExecutionStatusRunning
	return nil
}

func (e *Engine) finish(logger *slog.Logger, err error) {
	e.mu.Lock()
	e.running = false
	e.paused = false
	e.resume = nil
	if err != nil {
		e.status = types.ExecutionStatusFailed
	} else {
		e.status = types.ExecutionStatusCompleted
	}
	status := e.status
	e.mu.Unlock()

	e.opts.Metrics.RunFinished(string(status))
	if err != nil {
		logger.Error("Execution failed", "error", err)
	}
}

// reset clears the context store and puts every node of design back to idle.
func (e *Engine) reset(design *types.Design) {
	e.store.Clear()

	var nodes []types.Node
	if design != nil {
		nodes = design.Topology.Nodes
	}

	e.mu.Lock()
	e.states = make(map[string]*types.NodeExecutionState, len(nodes))
	for _, n := range nodes {
		e.states[n.ID] = &types.NodeExecutionState{NodeID: n.ID, Status: types.NodeStatusIdle}
	}
	e.mu.Unlock()

	for _, n := range nodes {
		e.notify(func(l Listener) { l.OnNodeStatusChange(n.ID, types.NodeStatusIdle, "") })
	}
}

func (e *Engine) setContext(key string, entry types.ContextEntry) {
	e.store.Set(key, entry)
	e.notify(func(l Listener) { l.OnContextUpdate(key, entry) })
}

func (e *Engine) notify(fn func(Listener)) {
	if e.listener == nil {
		return
	}
	e.notifyMu.Lock()
	defer e.notifyMu.Unlock()
	fn(e.listener)
}
