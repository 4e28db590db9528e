// Copyright (c) 2026 Jess Grable <jgrable@hey.com>.
// SPDX-License-Identifier: Apache-2.0

package graph

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/apex/log"
)

// NodeState is the terminal state of one node after a Walk.
type NodeState int

const (
	StateOK NodeState = iota
	StateFailed
	StateSkipped
)

// WalkResult records how each node fared.
type WalkResult struct {
	States map[string]NodeState
	Errors map[string]error
}

// Failed returns the IDs of nodes that failed outright, sorted.
func (r *WalkResult) Failed() []string {
	var ids []string
	for id, st := range r.States {
		if st == StateFailed {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Walk executes fn for every node in dependency order with up to parallelism
// concurrent workers. A node runs only once all of its dependencies have
// succeeded; when a node fails, its transitive dependents are skipped rather
// than run against half-applied dependencies. Walk returns the per-node
// result and a non-nil error if any node failed.
func (g *Graph) Walk(ctx context.Context, parallelism int, fn func(ctx context.Context, id string) error) (*WalkResult, error) {
	if err := g.DetectCycles(); err != nil {
		return nil, err
	}
	if parallelism < 1 {
		parallelism = 1
	}

	g.mutex.RLock()
	total := len(g.nodes)

	// Remaining dependency counts, seeded before any worker starts.
	pending := make(map[string]int, total)
	ready := make(chan string, total)
	for id, n := range g.nodes {
		pending[id] = len(n.deps)
		if len(n.deps) == 0 {
			ready <- id
		}
	}
	g.mutex.RUnlock()

	result := &WalkResult{
		States: make(map[string]NodeState, total),
		Errors: make(map[string]error),
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(total)

	// release marks id done with the given state and enqueues any dependents
	// whose dependencies are all settled. Failure cascades as StateSkipped.
	var release func(id string, st NodeState, err error)
	release = func(id string, st NodeState, err error) {
		mu.Lock()
		if _, done := result.States[id]; done {
			mu.Unlock()
			return
		}
		result.States[id] = st
		if err != nil {
			result.Errors[id] = err
		}

		g.mutex.RLock()
		dependents := make([]string, 0, len(g.nodes[id].dependents))
		for depID := range g.nodes[id].dependents {
			dependents = append(dependents, depID)
		}
		g.mutex.RUnlock()

		var toSkip []string
		var toRun []string
		for _, depID := range dependents {
			if _, done := result.States[depID]; done {
				continue
			}
			if st != StateOK {
				toSkip = append(toSkip, depID)
				continue
			}
			pending[depID]--
			if pending[depID] == 0 {
				toRun = append(toRun, depID)
			}
		}
		mu.Unlock()

		wg.Done()

		for _, depID := range toSkip {
			log.Debugf("skipping %s: upstream %s did not complete", depID, id)
			release(depID, StateSkipped, fmt.Errorf("skipped: dependency %s failed", id))
		}
		for _, depID := range toRun {
			ready <- depID
		}
	}

	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for i := 0; i < parallelism; i++ {
		go func() {
			for id := range ready {
				if workCtx.Err() != nil {
					release(id, StateFailed, workCtx.Err())
					continue
				}
				if err := fn(workCtx, id); err != nil {
					release(id, StateFailed, err)
				} else {
					release(id, StateOK, nil)
				}
			}
		}()
	}

	wg.Wait()
	close(ready)

	var firstErr error
	for _, id := range result.Failed() {
		if firstErr == nil {
			firstErr = fmt.Errorf("walk failed at %s: %w", id, result.Errors[id])
		}
	}

	return result, firstErr
}
