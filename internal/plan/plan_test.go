// Copyright (c) 2026 Jess Grable <jgrable@hey.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grable/snapctlgo/internal/manifest"
	"github.com/grable/snapctlgo/internal/state"
)

func testManifest() *manifest.Manifest {
	return &manifest.Manifest{
		Project: manifest.Project{ID: "acme-data-prod", Topic: "table-snapshots"},
		ServiceAccounts: []*manifest.ServiceAccount{
			{Name: "fetcher", AccountID: "snap-fetcher", DisplayName: "Table fetcher"},
			{Name: "creator", AccountID: "snap-creator"},
		},
		CustomRoles: []*manifest.CustomRole{
			{
				Name:        "snapshot_creator",
				RoleID:      "snapshotCreator",
				Title:       "Snapshot Creator",
				Stage:       "GA",
				Permissions: []string{"bigquery.tables.createSnapshot", "bigquery.tables.get"},
			},
		},
		Bindings: []*manifest.Binding{
			{
				Name:     "creator_snapshots",
				Resource: "project",
				Role:     "projects/acme-data-prod/roles/snapshotCreator",
				Members:  []string{"serviceAccount:snap-creator@acme-data-prod.iam.gserviceaccount.com"},
				Refs:     []string{"custom_role.snapshot_creator", "service_account.creator"},
			},
		},
	}
}

func appliedState(m *manifest.Manifest) *state.Document {
	st := state.New(m.Project.ID)
	st.Serial = 1
	for _, addr := range m.Addresses() {
		res := state.Resource{Attributes: DesiredAttributes(m, addr)}
		res.Type, res.Name, _ = cutAddr(addr)
		res.ID = addr
		st.Upsert(res)
	}
	return st
}

func cutAddr(addr string) (string, string, bool) {
	for i := 0; i < len(addr); i++ {
		if addr[i] == '.' {
			return addr[:i], addr[i+1:], true
		}
	}
	return addr, "", false
}

func TestBuildAllCreatesOnEmptyState(t *testing.T) {
	m := testManifest()
	p := Build(m, state.New(m.Project.ID))

	create, update, del := p.Counts()
	assert.Equal(t, 4, create)
	assert.Equal(t, 0, update)
	assert.Equal(t, 0, del)
	assert.True(t, p.Changed())

	c := p.Change("service_account.fetcher")
	require.NotNil(t, c)
	assert.Equal(t, ActionCreate, c.Action)
}

func TestBuildNoopWhenStateMatches(t *testing.T) {
	m := testManifest()
	p := Build(m, appliedState(m))

	create, update, del := p.Counts()
	assert.Zero(t, create)
	assert.Zero(t, update)
	assert.Zero(t, del)
	assert.False(t, p.Changed())
}

func TestBuildDetectsDrift(t *testing.T) {
	m := testManifest()
	st := appliedState(m)

	rec := st.Resource("service_account.fetcher")
	require.NotNil(t, rec)
	rec.Attributes["display_name"] = "renamed by hand"
	rec.Attributes["disabled"] = "true"

	p := Build(m, st)
	c := p.Change("service_account.fetcher")
	require.NotNil(t, c)
	assert.Equal(t, ActionUpdate, c.Action)
	assert.Equal(t, "disabled,display_name", c.Reason)
}

func TestBuildMemberOrderIsNotDrift(t *testing.T) {
	m := testManifest()
	m.Bindings[0].Members = []string{"serviceAccount:b@x.com", "serviceAccount:a@x.com"}
	st := appliedState(m)

	m.Bindings[0].Members = []string{"serviceAccount:a@x.com", "serviceAccount:b@x.com"}
	p := Build(m, st)

	c := p.Change("binding.creator_snapshots")
	require.NotNil(t, c)
	assert.Equal(t, ActionNoop, c.Action)
}

func TestBuildDeletesRemovedResources(t *testing.T) {
	m := testManifest()
	st := appliedState(m)
	st.Upsert(state.Resource{Type: "service_account", Name: "retired", ID: "retired"})
	st.Upsert(state.Resource{Type: "binding", Name: "retired_viewer", ID: "retired_viewer"})

	p := Build(m, st)
	_, _, del := p.Counts()
	assert.Equal(t, 2, del)

	// Deletes come last, the binding before the account it references.
	n := len(p.Changes)
	assert.Equal(t, "binding.retired_viewer", p.Changes[n-2].Address)
	assert.Equal(t, "service_account.retired", p.Changes[n-1].Address)
	assert.Equal(t, ActionDelete, p.Changes[n-1].Action)
}

func TestBuildDeletesBindingsBeforeIdentities(t *testing.T) {
	m := testManifest()
	st := appliedState(m)
	// Address order alone would delete the account first.
	st.Upsert(state.Resource{Type: "service_account", Name: "archiver", ID: "archiver"})
	st.Upsert(state.Resource{Type: "custom_role", Name: "archive_writer", ID: "archive_writer"})
	st.Upsert(state.Resource{Type: "binding", Name: "zz_archiver_writes", ID: "zz_archiver_writes"})

	p := Build(m, st)

	var deletes []string
	for _, c := range p.Changes {
		if c.Action == ActionDelete {
			deletes = append(deletes, c.Address)
		}
	}
	assert.Equal(t, []string{
		"binding.zz_archiver_writes",
		"custom_role.archive_writer",
		"service_account.archiver",
	}, deletes)
}

func TestBuildProviderFactsAreNotDrift(t *testing.T) {
	m := testManifest()
	st := appliedState(m)
	st.Resource("service_account.fetcher").Attributes["email"] =
		"snap-fetcher@acme-data-prod.iam.gserviceaccount.com"

	p := Build(m, st)
	assert.Equal(t, ActionNoop, p.Change("service_account.fetcher").Action)
}

func TestBuildWarnsOnRedundantNames(t *testing.T) {
	m := testManifest()
	m.ServiceAccounts = append(m.ServiceAccounts, &manifest.ServiceAccount{
		Name: "backup_account", AccountID: "snap-backup",
	})

	p := Build(m, state.New(m.Project.ID))
	require.Len(t, p.Warnings, 1)
	assert.Contains(t, p.Warnings[0], "service_account.backup_account")
}

func TestDesiredAttributes(t *testing.T) {
	m := testManifest()

	tests := []struct {
		name string
		addr string
		want map[string]string
	}{
		{
			name: "service account",
			addr: "service_account.fetcher",
			want: map[string]string{
				"account_id":   "snap-fetcher",
				"display_name": "Table fetcher",
				"description":  "",
				"disabled":     "false",
			},
		},
		{
			name: "custom role",
			addr: "custom_role.snapshot_creator",
			want: map[string]string{
				"role_id":     "snapshotCreator",
				"title":       "Snapshot Creator",
				"description": "",
				"stage":       "GA",
				"permissions": "bigquery.tables.createSnapshot,bigquery.tables.get",
			},
		},
		{
			name: "unknown address",
			addr: "service_account.ghost",
			want: nil,
		},
		{
			name: "malformed address",
			addr: "nonsense",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DesiredAttributes(m, tt.addr))
		})
	}
}
