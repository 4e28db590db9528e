// Copyright (c) 2026 Jess Grable <jgrable@hey.com>.
// SPDX-License-Identifier: Apache-2.0

// Package apply executes a plan against a provider in dependency order and
// produces the next state document.
package apply

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/apex/log"

	"github.com/grable/snapctlgo/internal/graph"
	"github.com/grable/snapctlgo/internal/manifest"
	"github.com/grable/snapctlgo/internal/plan"
	"github.com/grable/snapctlgo/internal/provider"
	"github.com/grable/snapctlgo/internal/state"
)

// DefaultParallelism caps concurrent provider calls during a walk.
const DefaultParallelism = 4

// Result summarizes one apply.
type Result struct {
	Created int
	Updated int
	Deleted int
	Skipped []string
	Failed  []string
}

// Run applies the plan. Deletes run first in the plan's order, bindings
// before the identities they reference, then creates and updates walk the
// dependency graph concurrently. The
// returned document reflects everything that succeeded even when the apply
// as a whole failed, so a rerun picks up where this one stopped.
func Run(ctx context.Context, m *manifest.Manifest, p *plan.Plan, prov provider.Provider, prior *state.Document, parallelism int) (*state.Document, *Result, error) {
	if parallelism < 1 {
		parallelism = DefaultParallelism
	}

	next := &state.Document{
		Version:   state.FormatVersion,
		Serial:    prior.Serial + 1,
		Lineage:   prior.Lineage,
		Project:   prior.Project,
		Resources: append([]state.Resource(nil), prior.Resources...),
		Outputs:   map[string]string{},
	}

	res := &Result{}

	var firstErr error
	for _, c := range p.Changes {
		if c.Action != plan.ActionDelete {
			continue
		}
		if err := destroy(ctx, prov, next, c.Address); err != nil {
			res.Failed = append(res.Failed, c.Address)
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to delete %s: %w", c.Address, err)
			}
			continue
		}
		log.Infof("deleted %s", c.Address)
		next.Remove(c.Address)
		res.Deleted++
	}
	if firstErr != nil {
		return next, res, firstErr
	}

	g, err := buildGraph(m)
	if err != nil {
		return next, res, err
	}

	var mu sync.Mutex
	walkRes, walkErr := g.Walk(ctx, parallelism, func(ctx context.Context, addr string) error {
		c := p.Change(addr)
		if c == nil || c.Action == plan.ActionNoop {
			return nil
		}

		applied, err := ensure(ctx, prov, m, addr)
		if err != nil {
			return err
		}

		attrs := plan.DesiredAttributes(m, addr)
		for k, v := range applied.Attributes {
			attrs[k] = v
		}
		typ, name, _ := strings.Cut(addr, ".")

		mu.Lock()
		next.Upsert(state.Resource{
			Type:       typ,
			Name:       name,
			ID:         applied.ID,
			Attributes: attrs,
		})
		if c.Action == plan.ActionCreate {
			res.Created++
		} else {
			res.Updated++
		}
		mu.Unlock()

		log.Infof("%sd %s", c.Action, addr)
		return nil
	})
	if walkRes != nil {
		for addr, st := range walkRes.States {
			if st == graph.StateSkipped {
				res.Skipped = append(res.Skipped, addr)
			}
		}
		res.Failed = append(res.Failed, walkRes.Failed()...)
	}

	// An output publishes only when everything it references applied, so a
	// failed walk never advertises an identity that was not created.
	unresolved := map[string]bool{}
	for _, addr := range res.Failed {
		unresolved[addr] = true
	}
	for _, addr := range res.Skipped {
		unresolved[addr] = true
	}
	for _, o := range m.Outputs {
		ready := true
		for _, ref := range o.Refs {
			if unresolved[ref] || next.Resource(ref) == nil {
				ready = false
				break
			}
		}
		if ready {
			next.Outputs[o.Name] = o.Value
		}
	}

	return next, res, walkErr
}

// buildGraph adds every provisionable address and an edge for every
// reference a binding or role declares to another provisionable address.
func buildGraph(m *manifest.Manifest) (*graph.Graph, error) {
	g := graph.New()

	addrs := map[string]bool{}
	for _, addr := range m.Addresses() {
		g.AddNode(addr)
		addrs[addr] = true
	}

	for _, b := range m.Bindings {
		addr := "binding." + b.Name
		for _, ref := range b.Refs {
			if !addrs[ref] {
				continue
			}
			if err := g.AddEdge(ref, addr); err != nil {
				return nil, err
			}
		}
	}

	return g, nil
}

func ensure(ctx context.Context, prov provider.Provider, m *manifest.Manifest, addr string) (*provider.Applied, error) {
	typ, name, _ := strings.Cut(addr, ".")
	switch typ {
	case "service_account":
		return prov.EnsureServiceAccount(ctx, m.ServiceAccount(name))
	case "custom_role":
		return prov.EnsureRole(ctx, m.CustomRole(name))
	case "binding":
		return prov.EnsureBinding(ctx, m.Binding(name))
	}
	return nil, fmt.Errorf("unknown resource type in %s", addr)
}

// destroy reverses one recorded resource using only what state remembers,
// since the manifest no longer declares it.
func destroy(ctx context.Context, prov provider.Provider, doc *state.Document, addr string) error {
	r := doc.Resource(addr)
	if r == nil {
		return nil
	}
	switch r.Type {
	case "service_account":
		return prov.DeleteServiceAccount(ctx, r.ID)
	case "custom_role":
		return prov.DeleteRole(ctx, r.ID)
	case "binding":
		members := strings.Split(r.Attributes["members"], ",")
		return prov.RemoveBinding(ctx, r.Attributes["resource"], r.Attributes["role"], members)
	}
	return fmt.Errorf("unknown resource type in %s", addr)
}
