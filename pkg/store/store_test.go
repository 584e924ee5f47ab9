// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoswarm/pkg/types"
)

func entry(value any, by string) types.ContextEntry {
	return types.ContextEntry{
		Value:      value,
		ProducedBy: by,
		Timestamp:  time.Now(),
		Type:       types.ContextEntryIntermediate,
	}
}

func TestStore_SetGet(t *testing.T) {
	s := New()

	_, ok := s.Get("missing")
	assert.False(t, ok)

	s.Set("a", entry("one", "node-a"))
	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, "one", got.Value)
	assert.Equal(t, "node-a", got.ProducedBy)

	s.Set("a", entry("two", "node-a"))
	got, _ = s.Get("a")
	assert.Equal(t, "two", got.Value)
	assert.Equal(t, 1, s.Len())
}

func TestStore_KeysKeepInsertionOrder(t *testing.T) {
	s := New()
	s.Set("__task__", entry("t", "system"))
	s.Set("b", entry(1, "b"))
	s.Set("a", entry(2, "a"))
	s.Set("b", entry(3, "b"))

	assert.Equal(t, []string{"__task__", "b", "a"}, s.Keys())
}

func TestStore_Clear(t *testing.T) {
	s := New()
	s.Set("a", entry("x", "a"))
	s.Set("b", entry("y", "b"))

	s.Clear()

	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Keys())
	assert.False(t, s.Has("a"))
}

func TestStore_SnapshotIsIndependent(t *testing.T) {
	s := New()
	s.Set("a", entry("before", "a"))

	snap := s.Snapshot()
	s.Set("a", entry("after", "a"))
	s.Set("b", entry("new", "b"))

	require.Len(t, snap, 1)
	assert.Equal(t, "before", snap["a"].Value)

	snap["c"] = entry("local", "test")
	assert.False(t, s.Has("c"))
}

func TestStore_ConcurrentDisjointWriters(t *testing.T) {
	s := New()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("node-%d", i)
			s.Set(id, entry(i, id))
			s.Set("name-"+id, entry(i, id))
			_ = s.Keys()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 64, s.Len())
}
