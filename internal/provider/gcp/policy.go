// Copyright (c) 2026 Jess Grable <jgrable@hey.com>.
// SPDX-License-Identifier: Apache-2.0

package gcp

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/apex/log"
	bigquery "google.golang.org/api/bigquery/v2"
	cloudresourcemanager "google.golang.org/api/cloudresourcemanager/v1"
	pubsub "google.golang.org/api/pubsub/v1"
)

// setIamPolicy read-modify-write cycles retry this many times on an etag
// conflict before giving up.
const policyAttempts = 3

// policyStore grants and revokes one role's members on one resource kind.
type policyStore interface {
	grant(ctx context.Context, target, role string, members []string) error
	revoke(ctx context.Context, target, role string, members []string) error
}

type policyStores struct {
	project string
	crm     *cloudresourcemanager.Service
	ps      *pubsub.Service
	bq      *bigquery.Service
}

func newPolicyStores(ctx context.Context, project string, crm *cloudresourcemanager.Service) (policyStores, error) {
	psSvc, err := pubsub.NewService(ctx)
	if err != nil {
		return policyStores{}, fmt.Errorf("failed to create pubsub client: %w", err)
	}
	bqSvc, err := bigquery.NewService(ctx)
	if err != nil {
		return policyStores{}, fmt.Errorf("failed to create bigquery client: %w", err)
	}
	return policyStores{
		project: project,
		crm:     crm,
		ps:      psSvc,
		bq:      bqSvc,
	}, nil
}

// resolve maps a manifest resource spec to the store that owns its policy
// and the API-level target name.
func (p policyStores) resolve(spec string) (policyStore, string, error) {
	if spec == "project" {
		return &projectPolicy{crm: p.crm}, p.project, nil
	}

	parts := strings.SplitN(spec, "/", 2)
	if len(parts) != 2 {
		return nil, "", fmt.Errorf("invalid resource spec %q", spec)
	}

	switch parts[0] {
	case "topic":
		target := fmt.Sprintf("projects/%s/topics/%s", p.project, parts[1])
		return &pubsubPolicy{ps: p.ps, kind: "topic"}, target, nil
	case "subscription":
		target := fmt.Sprintf("projects/%s/subscriptions/%s", p.project, parts[1])
		return &pubsubPolicy{ps: p.ps, kind: "subscription"}, target, nil
	case "dataset":
		return &datasetPolicy{bq: p.bq, project: p.project}, parts[1], nil
	}

	return nil, "", fmt.Errorf("invalid resource spec %q", spec)
}

// projectPolicy manages role bindings on the project's IAM policy.
type projectPolicy struct {
	crm *cloudresourcemanager.Service
}

func (pp *projectPolicy) grant(ctx context.Context, project, role string, members []string) error {
	return pp.update(ctx, project, func(policy *cloudresourcemanager.Policy) {
		mergeMembers(policy, role, members)
	})
}

func (pp *projectPolicy) revoke(ctx context.Context, project, role string, members []string) error {
	return pp.update(ctx, project, func(policy *cloudresourcemanager.Policy) {
		dropMembers(policy, role, members)
	})
}

// update runs the read-modify-write cycle with bounded retry on etag
// conflicts.
func (pp *projectPolicy) update(ctx context.Context, project string, mutate func(*cloudresourcemanager.Policy)) error {
	var lastErr error
	for attempt := 0; attempt < policyAttempts; attempt++ {
		policy, err := pp.crm.Projects.GetIamPolicy(project,
			&cloudresourcemanager.GetIamPolicyRequest{}).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("failed to get project policy: %w", err)
		}

		mutate(policy)

		_, err = pp.crm.Projects.SetIamPolicy(project,
			&cloudresourcemanager.SetIamPolicyRequest{Policy: policy}).Context(ctx).Do()
		if err == nil {
			return nil
		}
		if !IsConflict(err) {
			return fmt.Errorf("failed to set project policy: %w", err)
		}
		log.Debugf("project policy etag conflict, retrying (%d)", attempt+1)
		lastErr = err
	}
	return fmt.Errorf("project policy conflict persisted: %w", lastErr)
}

// pubsubPolicy manages role bindings on topics and subscriptions.
type pubsubPolicy struct {
	ps   *pubsub.Service
	kind string
}

func (tp *pubsubPolicy) grant(ctx context.Context, target, role string, members []string) error {
	return tp.update(ctx, target, func(policy *pubsub.Policy) {
		tp.mergeMembers(policy, role, members)
	})
}

func (tp *pubsubPolicy) revoke(ctx context.Context, target, role string, members []string) error {
	return tp.update(ctx, target, func(policy *pubsub.Policy) {
		tp.dropMembers(policy, role, members)
	})
}

func (tp *pubsubPolicy) update(ctx context.Context, target string, mutate func(*pubsub.Policy)) error {
	var lastErr error
	for attempt := 0; attempt < policyAttempts; attempt++ {
		var policy *pubsub.Policy
		var err error
		if tp.kind == "topic" {
			policy, err = tp.ps.Projects.Topics.GetIamPolicy(target).Context(ctx).Do()
		} else {
			policy, err = tp.ps.Projects.Subscriptions.GetIamPolicy(target).Context(ctx).Do()
		}
		if err != nil {
			return fmt.Errorf("failed to get %s policy: %w", tp.kind, err)
		}

		mutate(policy)

		req := &pubsub.SetIamPolicyRequest{Policy: policy}
		if tp.kind == "topic" {
			_, err = tp.ps.Projects.Topics.SetIamPolicy(target, req).Context(ctx).Do()
		} else {
			_, err = tp.ps.Projects.Subscriptions.SetIamPolicy(target, req).Context(ctx).Do()
		}
		if err == nil {
			return nil
		}
		if !IsConflict(err) {
			return fmt.Errorf("failed to set %s policy: %w", tp.kind, err)
		}
		log.Debugf("%s policy etag conflict, retrying (%d)", tp.kind, attempt+1)
		lastErr = err
	}
	return fmt.Errorf("%s policy conflict persisted: %w", tp.kind, lastErr)
}

func (tp *pubsubPolicy) mergeMembers(policy *pubsub.Policy, role string, members []string) {
	for _, b := range policy.Bindings {
		if b.Role == role {
			b.Members = unionMembers(b.Members, members)
			return
		}
	}
	policy.Bindings = append(policy.Bindings, &pubsub.Binding{
		Role:    role,
		Members: unionMembers(nil, members),
	})
}

func (tp *pubsubPolicy) dropMembers(policy *pubsub.Policy, role string, members []string) {
	kept := policy.Bindings[:0]
	for _, b := range policy.Bindings {
		if b.Role == role {
			b.Members = subtractMembers(b.Members, members)
		}
		if len(b.Members) > 0 {
			kept = append(kept, b)
		}
	}
	policy.Bindings = kept
}

// datasetPolicy manages grants through BigQuery dataset access entries,
// which predate full IAM policies on datasets.
type datasetPolicy struct {
	bq      *bigquery.Service
	project string
}

func (dp *datasetPolicy) grant(ctx context.Context, datasetID, role string, members []string) error {
	return dp.update(ctx, datasetID, false, func(ds *bigquery.Dataset) *bigquery.Dataset {
		changed := false
		for _, member := range members {
			email := strings.TrimPrefix(member, "serviceAccount:")
			if hasAccess(ds.Access, role, email) {
				continue
			}
			ds.Access = append(ds.Access, &bigquery.DatasetAccess{
				Role:        role,
				UserByEmail: email,
			})
			changed = true
		}
		if !changed {
			return nil
		}
		return &bigquery.Dataset{Access: ds.Access}
	})
}

func (dp *datasetPolicy) revoke(ctx context.Context, datasetID, role string, members []string) error {
	drop := map[string]bool{}
	for _, member := range members {
		drop[strings.TrimPrefix(member, "serviceAccount:")] = true
	}

	return dp.update(ctx, datasetID, true, func(ds *bigquery.Dataset) *bigquery.Dataset {
		kept := ds.Access[:0]
		changed := false
		for _, a := range ds.Access {
			if a.Role == role && drop[a.UserByEmail] {
				changed = true
				continue
			}
			kept = append(kept, a)
		}
		if !changed {
			return nil
		}
		patch := &bigquery.Dataset{Access: kept}
		patch.ForceSendFields = []string{"Access"}
		return patch
	})
}

// update runs the access read-modify-write cycle with the same bounded
// etag-conflict retry as the other stores. mutate returns the patch to send,
// or nil when the access list already matches.
func (dp *datasetPolicy) update(ctx context.Context, datasetID string, missingOK bool, mutate func(*bigquery.Dataset) *bigquery.Dataset) error {
	var lastErr error
	for attempt := 0; attempt < policyAttempts; attempt++ {
		ds, err := dp.bq.Datasets.Get(dp.project, datasetID).Context(ctx).Do()
		if err != nil {
			if missingOK && IsNotFound(err) {
				return nil
			}
			return fmt.Errorf("failed to get dataset %s: %w", datasetID, err)
		}

		patch := mutate(ds)
		if patch == nil {
			return nil
		}
		patch.Etag = ds.Etag

		_, err = dp.bq.Datasets.Patch(dp.project, datasetID, patch).Context(ctx).Do()
		if err == nil {
			return nil
		}
		if !IsConflict(err) {
			return fmt.Errorf("failed to patch dataset %s: %w", datasetID, err)
		}
		log.Debugf("dataset policy etag conflict, retrying (%d)", attempt+1)
		lastErr = err
	}
	return fmt.Errorf("dataset policy conflict persisted: %w", lastErr)
}

func hasAccess(access []*bigquery.DatasetAccess, role, email string) bool {
	for _, a := range access {
		if a.Role == role && a.UserByEmail == email {
			return true
		}
	}
	return false
}

func mergeMembers(policy *cloudresourcemanager.Policy, role string, members []string) {
	for _, b := range policy.Bindings {
		if b.Role == role {
			b.Members = unionMembers(b.Members, members)
			return
		}
	}
	policy.Bindings = append(policy.Bindings, &cloudresourcemanager.Binding{
		Role:    role,
		Members: unionMembers(nil, members),
	})
}

func dropMembers(policy *cloudresourcemanager.Policy, role string, members []string) {
	kept := policy.Bindings[:0]
	for _, b := range policy.Bindings {
		if b.Role == role {
			b.Members = subtractMembers(b.Members, members)
		}
		if len(b.Members) > 0 {
			kept = append(kept, b)
		}
	}
	policy.Bindings = kept
}

func unionMembers(existing, add []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range append(append([]string(nil), existing...), add...) {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out
}

func subtractMembers(existing, remove []string) []string {
	drop := map[string]bool{}
	for _, m := range remove {
		drop[m] = true
	}
	var out []string
	for _, m := range existing {
		if !drop[m] {
			out = append(out, m)
		}
	}
	return out
}
