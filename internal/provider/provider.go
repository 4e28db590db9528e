// Copyright (c) 2026 Jess Grable <jgrable@hey.com>.
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"context"

	"github.com/grable/snapctlgo/internal/manifest"
)

// Applied is what a provider hands back after ensuring a resource: the
// cloud-side identifier plus any attributes worth recording in state.
type Applied struct {
	ID         string
	Attributes map[string]string
}

// Provider applies declared resources to the cloud side. Ensure operations
// are idempotent: an already-existing resource is reconciled, not an error.
type Provider interface {
	EnsureServiceAccount(ctx context.Context, sa *manifest.ServiceAccount) (*Applied, error)
	DeleteServiceAccount(ctx context.Context, email string) error

	EnsureRole(ctx context.Context, cr *manifest.CustomRole) (*Applied, error)
	DeleteRole(ctx context.Context, name string) error

	EnsureBinding(ctx context.Context, b *manifest.Binding) (*Applied, error)
	RemoveBinding(ctx context.Context, resource, role string, members []string) error
}
