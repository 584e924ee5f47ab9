// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package engine

import "autoswarm/pkg/types"

// Listener receives engine notifications as execution proceeds. Calls are
// synchronous and serialized by the engine, so implementations need no
// locking of their own; emissions for any one node arrive in order.
// Implementations must not call back into Execute.
type Listener interface {
	OnNodeStatusChange(nodeID string, status types.NodeStatus, errText string)
	OnLog(entry types.LogEntry)
	OnContextUpdate(key string, entry types.ContextEntry)
}

// ListenerFuncs adapts optional functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	NodeStatusChange func(nodeID string, status types.NodeStatus, errText string)
	Log              func(entry types.LogEntry)
	ContextUpdate    func(key string, entry types.ContextEntry)
}

func (l ListenerFuncs) OnNodeStatusChange(nodeID string, status types.NodeStatus, errText string) {
	if l.NodeStatusChange != nil {
		l.NodeStatusChange(nodeID, status, errText)
	}
}

func (l ListenerFuncs) OnLog(entry types.LogEntry) {
	if l.Log != nil {
		l.Log(entry)
	}
}

func (l ListenerFuncs) OnContextUpdate(key string, entry types.ContextEntry) {
	if l.ContextUpdate != nil {
		l.ContextUpdate(key, entry)
	}
}
