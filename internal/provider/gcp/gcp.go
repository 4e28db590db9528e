// Copyright (c) 2026 Jess Grable <jgrable@hey.com>.
// SPDX-License-Identifier: Apache-2.0

package gcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/apex/log"
	cloudresourcemanager "google.golang.org/api/cloudresourcemanager/v1"
	"google.golang.org/api/googleapi"
	iam "google.golang.org/api/iam/v1"

	"github.com/grable/snapctlgo/internal/manifest"
	"github.com/grable/snapctlgo/internal/provider"
)

// Gcp applies manifest resources through the Google IAM, Resource Manager,
// Pub/Sub and BigQuery APIs.
type Gcp struct {
	Project string

	iamSvc *iam.Service
	crmSvc *cloudresourcemanager.Service
	pol    policyStores
}

// New builds a provider against the live APIs using application default
// credentials.
func New(ctx context.Context, project string) (*Gcp, error) {
	iamSvc, err := iam.NewService(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create iam client: %w", err)
	}
	crmSvc, err := cloudresourcemanager.NewService(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource manager client: %w", err)
	}
	pol, err := newPolicyStores(ctx, project, crmSvc)
	if err != nil {
		return nil, err
	}

	return &Gcp{
		Project: project,
		iamSvc:  iamSvc,
		crmSvc:  crmSvc,
		pol:     pol,
	}, nil
}

func (g *Gcp) saName(email string) string {
	return fmt.Sprintf("projects/%s/serviceAccounts/%s", g.Project, email)
}

// EnsureServiceAccount creates the account or, when it already exists,
// reconciles display name, description and disabled flag.
func (g *Gcp) EnsureServiceAccount(ctx context.Context, sa *manifest.ServiceAccount) (*provider.Applied, error) {
	email := sa.Email(g.Project)

	created, err := g.iamSvc.Projects.ServiceAccounts.Create("projects/"+g.Project,
		&iam.CreateServiceAccountRequest{
			AccountId: sa.AccountID,
			ServiceAccount: &iam.ServiceAccount{
				DisplayName: sa.DisplayName,
				Description: sa.Description,
			},
		}).Context(ctx).Do()

	switch {
	case err == nil:
		log.Debugf("created service account %s", email)
	case IsAlreadyExists(err):
		// Idempotent apply: fall through to a read + reconcile.
		log.Debugf("service account %s already exists, reconciling", email)
		created, err = g.reconcileServiceAccount(ctx, sa, email)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("failed to create service account %s: %w", email, err)
	}

	if sa.Disabled != created.Disabled {
		if sa.Disabled {
			_, err = g.iamSvc.Projects.ServiceAccounts.Disable(g.saName(email),
				&iam.DisableServiceAccountRequest{}).Context(ctx).Do()
		} else {
			_, err = g.iamSvc.Projects.ServiceAccounts.Enable(g.saName(email),
				&iam.EnableServiceAccountRequest{}).Context(ctx).Do()
		}
		if err != nil {
			return nil, fmt.Errorf("failed to toggle service account %s: %w", email, err)
		}
	}

	return &provider.Applied{
		ID: email,
		Attributes: map[string]string{
			"email":     created.Email,
			"unique_id": created.UniqueId,
			"member":    "serviceAccount:" + created.Email,
		},
	}, nil
}

func (g *Gcp) reconcileServiceAccount(ctx context.Context, sa *manifest.ServiceAccount, email string) (*iam.ServiceAccount, error) {
	existing, err := g.iamSvc.Projects.ServiceAccounts.Get(g.saName(email)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get service account %s: %w", email, err)
	}

	if existing.DisplayName == sa.DisplayName && existing.Description == sa.Description {
		return existing, nil
	}

	patched, err := g.iamSvc.Projects.ServiceAccounts.Patch(g.saName(email),
		&iam.PatchServiceAccountRequest{
			ServiceAccount: &iam.ServiceAccount{
				DisplayName: sa.DisplayName,
				Description: sa.Description,
				Etag:        existing.Etag,
			},
			UpdateMask: "display_name,description",
		}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to patch service account %s: %w", email, err)
	}
	patched.Disabled = existing.Disabled
	if patched.UniqueId == "" {
		patched.UniqueId = existing.UniqueId
	}
	if patched.Email == "" {
		patched.Email = email
	}
	return patched, nil
}

func (g *Gcp) DeleteServiceAccount(ctx context.Context, email string) error {
	_, err := g.iamSvc.Projects.ServiceAccounts.Delete(g.saName(email)).Context(ctx).Do()
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("failed to delete service account %s: %w", email, err)
	}
	return nil
}

// EnsureRole creates or reconciles a project custom role. A soft-deleted
// role is undeleted first.
func (g *Gcp) EnsureRole(ctx context.Context, cr *manifest.CustomRole) (*provider.Applied, error) {
	name := cr.FullName(g.Project)

	role := &iam.Role{
		Title:               cr.Title,
		Description:         cr.Description,
		Stage:               cr.Stage,
		IncludedPermissions: append([]string(nil), cr.Permissions...),
	}

	created, err := g.iamSvc.Projects.Roles.Create("projects/"+g.Project,
		&iam.CreateRoleRequest{
			RoleId: cr.RoleID,
			Role:   role,
		}).Context(ctx).Do()

	switch {
	case err == nil:
		log.Debugf("created role %s", name)
	case IsAlreadyExists(err):
		log.Debugf("role %s already exists, reconciling", name)
		existing, getErr := g.iamSvc.Projects.Roles.Get(name).Context(ctx).Do()
		if getErr != nil {
			return nil, fmt.Errorf("failed to get role %s: %w", name, getErr)
		}

		if existing.Deleted {
			if _, err := g.iamSvc.Projects.Roles.Undelete(name,
				&iam.UndeleteRoleRequest{Etag: existing.Etag}).Context(ctx).Do(); err != nil {
				return nil, fmt.Errorf("failed to undelete role %s: %w", name, err)
			}
		}

		role.Etag = existing.Etag
		created, err = g.iamSvc.Projects.Roles.Patch(name, role).
			UpdateMask("title,description,stage,includedPermissions").Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("failed to patch role %s: %w", name, err)
		}
	default:
		return nil, fmt.Errorf("failed to create role %s: %w", name, err)
	}

	return &provider.Applied{
		ID: name,
		Attributes: map[string]string{
			"name":  name,
			"title": created.Title,
		},
	}, nil
}

func (g *Gcp) DeleteRole(ctx context.Context, name string) error {
	_, err := g.iamSvc.Projects.Roles.Delete(name).Context(ctx).Do()
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("failed to delete role %s: %w", name, err)
	}
	return nil
}

// EnsureBinding merges the declared members into the role binding on the
// target resource.
func (g *Gcp) EnsureBinding(ctx context.Context, b *manifest.Binding) (*provider.Applied, error) {
	store, target, err := g.pol.resolve(b.Resource)
	if err != nil {
		return nil, err
	}

	if err := store.grant(ctx, target, b.Role, b.Members); err != nil {
		return nil, fmt.Errorf("failed to bind %s on %s: %w", b.Role, b.Resource, err)
	}

	return &provider.Applied{
		ID: b.Resource + "/" + b.Role,
		Attributes: map[string]string{
			"resource": b.Resource,
			"role":     b.Role,
		},
	}, nil
}

func (g *Gcp) RemoveBinding(ctx context.Context, resource, role string, members []string) error {
	store, target, err := g.pol.resolve(resource)
	if err != nil {
		return err
	}
	if err := store.revoke(ctx, target, role, members); err != nil {
		return fmt.Errorf("failed to unbind %s on %s: %w", role, resource, err)
	}
	return nil
}

// IsAlreadyExists reports whether err is a 409 from the API.
func IsAlreadyExists(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == 409
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == 404
}

// IsConflict reports whether err is a 409 optimistic-concurrency conflict.
// Same wire code as already-exists; separated for readability at call sites.
func IsConflict(err error) bool {
	return IsAlreadyExists(err)
}
