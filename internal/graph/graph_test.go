// Copyright (c) 2026 Jess Grable <jgrable@hey.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package graph

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddNodeIsIdempotent(t *testing.T) {
	g := New()
	g.AddNode("service_account.fetcher")
	g.AddNode("service_account.fetcher")

	assert.Equal(t, 1, g.Len())
}

func TestAddEdge(t *testing.T) {
	g := New()
	g.AddNode("service_account.fetcher")
	g.AddNode("binding.fetcher_metadata")

	err := g.AddEdge("service_account.fetcher", "binding.fetcher_metadata")
	require.NoError(t, err)

	deps, err := g.Dependencies("binding.fetcher_metadata")
	require.NoError(t, err)
	assert.Equal(t, []string{"service_account.fetcher"}, deps)

	dependents, err := g.Dependents("service_account.fetcher")
	require.NoError(t, err)
	assert.Equal(t, []string{"binding.fetcher_metadata"}, dependents)
}

func TestAddEdgeErrors(t *testing.T) {
	g := New()
	g.AddNode("a")

	assert.Error(t, g.AddEdge("a", "a"))
	assert.Error(t, g.AddEdge("a", "missing"))
	assert.Error(t, g.AddEdge("missing", "a"))
}

func TestDetectCycles(t *testing.T) {
	g := New()
	g.AddNode("a")
	g.AddNode("b")
	g.AddNode("c")
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("b", "c"))

	assert.NoError(t, g.DetectCycles())

	require.NoError(t, g.AddEdge("c", "a"))
	assert.ErrorContains(t, g.DetectCycles(), "cycle detected")
}

func TestWalkRunsDependenciesFirst(t *testing.T) {
	g := New()
	g.AddNode("service_account.creator")
	g.AddNode("custom_role.snapshot_creator")
	g.AddNode("binding.creator_snapshots")
	require.NoError(t, g.AddEdge("service_account.creator", "binding.creator_snapshots"))
	require.NoError(t, g.AddEdge("custom_role.snapshot_creator", "binding.creator_snapshots"))

	var mu sync.Mutex
	var order []string

	res, err := g.Walk(context.Background(), 2, func(_ context.Context, id string) error {
		mu.Lock()
		order = append(order, id)
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	assert.Len(t, order, 3)
	assert.Equal(t, "binding.creator_snapshots", order[2])
	for _, st := range res.States {
		assert.Equal(t, StateOK, st)
	}
}

func TestWalkSkipsDependentsOnFailure(t *testing.T) {
	g := New()
	g.AddNode("service_account.creator")
	g.AddNode("binding.creator_snapshots")
	g.AddNode("service_account.fetcher")
	require.NoError(t, g.AddEdge("service_account.creator", "binding.creator_snapshots"))

	boom := errors.New("quota exceeded")
	res, err := g.Walk(context.Background(), 1, func(_ context.Context, id string) error {
		if id == "service_account.creator" {
			return boom
		}
		return nil
	})

	assert.ErrorContains(t, err, "walk failed at service_account.creator")
	assert.Equal(t, StateFailed, res.States["service_account.creator"])
	assert.Equal(t, StateSkipped, res.States["binding.creator_snapshots"])
	assert.Equal(t, StateOK, res.States["service_account.fetcher"])
	assert.Equal(t, []string{"service_account.creator"}, res.Failed())
}

func TestWalkCyclicGraph(t *testing.T) {
	g := New()
	g.AddNode("a")
	g.AddNode("b")
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("b", "a"))

	_, err := g.Walk(context.Background(), 1, func(_ context.Context, _ string) error {
		return nil
	})
	assert.ErrorContains(t, err, "cycle detected")
}
