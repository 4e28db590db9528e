// Copyright (c) 2026 Jess Grable <jgrable@hey.com>.
// SPDX-License-Identifier: Apache-2.0

// Package fake is an in-memory Provider for tests and dry runs.
package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/grable/snapctlgo/internal/manifest"
	"github.com/grable/snapctlgo/internal/provider"
)

// Fake records every call it receives and serves resources out of maps.
// Safe for concurrent use so graph walks can exercise it directly.
type Fake struct {
	mu sync.Mutex

	Project string

	ServiceAccounts map[string]*manifest.ServiceAccount
	Roles           map[string]*manifest.CustomRole
	Bindings        map[string]*manifest.Binding

	// Calls is the ordered trace of operations, e.g. "ensure-sa fetcher".
	Calls []string

	// FailOn makes the named operation return an error, keyed the same
	// way Calls entries are written.
	FailOn map[string]error
}

func New(project string) *Fake {
	return &Fake{
		Project:         project,
		ServiceAccounts: map[string]*manifest.ServiceAccount{},
		Roles:           map[string]*manifest.CustomRole{},
		Bindings:        map[string]*manifest.Binding{},
		FailOn:          map[string]error{},
	}
}

func (f *Fake) record(op string) error {
	f.Calls = append(f.Calls, op)
	if err, ok := f.FailOn[op]; ok {
		return err
	}
	return nil
}

func (f *Fake) EnsureServiceAccount(_ context.Context, sa *manifest.ServiceAccount) (*provider.Applied, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ensure-sa " + sa.Name); err != nil {
		return nil, err
	}
	f.ServiceAccounts[sa.Name] = sa
	return &provider.Applied{
		ID: sa.Email(f.Project),
		Attributes: map[string]string{
			"email":  sa.Email(f.Project),
			"member": sa.Member(f.Project),
		},
	}, nil
}

func (f *Fake) DeleteServiceAccount(_ context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("delete-sa " + email); err != nil {
		return err
	}
	for name, sa := range f.ServiceAccounts {
		if sa.Email(f.Project) == email {
			delete(f.ServiceAccounts, name)
		}
	}
	return nil
}

func (f *Fake) EnsureRole(_ context.Context, cr *manifest.CustomRole) (*provider.Applied, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ensure-role " + cr.Name); err != nil {
		return nil, err
	}
	f.Roles[cr.Name] = cr
	return &provider.Applied{
		ID: cr.FullName(f.Project),
		Attributes: map[string]string{
			"name": cr.FullName(f.Project),
		},
	}, nil
}

func (f *Fake) DeleteRole(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("delete-role " + name); err != nil {
		return err
	}
	for key, cr := range f.Roles {
		if cr.FullName(f.Project) == name {
			delete(f.Roles, key)
		}
	}
	return nil
}

func (f *Fake) EnsureBinding(_ context.Context, b *manifest.Binding) (*provider.Applied, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ensure-binding " + b.Name); err != nil {
		return nil, err
	}
	f.Bindings[b.Name] = b
	return &provider.Applied{
		ID: fmt.Sprintf("%s/%s", b.Resource, b.Role),
		Attributes: map[string]string{
			"resource": b.Resource,
			"role":     b.Role,
		},
	}, nil
}

func (f *Fake) RemoveBinding(_ context.Context, resource, role string, members []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(fmt.Sprintf("remove-binding %s %s", resource, role)); err != nil {
		return err
	}
	for name, b := range f.Bindings {
		if b.Resource == resource && b.Role == role {
			delete(f.Bindings, name)
		}
	}
	return nil
}

// CallTrace returns a copy of the recorded operations.
func (f *Fake) CallTrace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.Calls))
	copy(out, f.Calls)
	return out
}
