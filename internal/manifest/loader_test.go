// Copyright (c) 2026 Jess Grable <jgrable@hey.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	m, err := Load("testdata")
	require.NoError(t, err)

	assert.Equal(t, "acme-data-prod", m.Project.ID)
	assert.Equal(t, "table-snapshots", m.Project.Topic)
	assert.Equal(t, "EU", m.Project.Location)

	assert.Len(t, m.ServiceAccounts, 2)
	assert.Len(t, m.CustomRoles, 1)
	assert.Len(t, m.Bindings, 3)
	assert.Len(t, m.Outputs, 2)
}

func TestLoadResolvesReferences(t *testing.T) {
	m, err := Load("testdata")
	require.NoError(t, err)

	b := m.Binding("creator_snapshots")
	require.NotNil(t, b)
	assert.Equal(t, "projects/acme-data-prod/roles/snapshotCreator", b.Role)
	assert.Equal(t,
		[]string{"serviceAccount:snap-creator@acme-data-prod.iam.gserviceaccount.com"},
		b.Members)
	assert.Equal(t,
		[]string{"custom_role.snapshot_creator", "service_account.creator"},
		b.Refs)

	b = m.Binding("fetcher_metadata")
	require.NotNil(t, b)
	assert.Equal(t, "roles/bigquery.metadataViewer", b.Role)
	assert.Equal(t, []string{"service_account.fetcher"}, b.Refs)
}

func TestLoadResolvesOutputs(t *testing.T) {
	m, err := Load("testdata")
	require.NoError(t, err)

	byName := map[string]*Output{}
	for _, o := range m.Outputs {
		byName[o.Name] = o
	}

	require.Contains(t, byName, "fetcher_email")
	assert.Equal(t,
		"snap-fetcher@acme-data-prod.iam.gserviceaccount.com",
		byName["fetcher_email"].Value)
	assert.Equal(t, []string{"service_account.fetcher"}, byName["fetcher_email"].Refs)
}

func TestLoadDefaultsRoleStage(t *testing.T) {
	m, err := Load("testdata")
	require.NoError(t, err)

	cr := m.CustomRole("snapshot_creator")
	require.NotNil(t, cr)
	assert.Equal(t, "GA", cr.Stage)
}

func writeManifest(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "main.hcl"), []byte(src), 0o644)
	require.NoError(t, err)
	return dir
}

func TestLoadNoManifestFiles(t *testing.T) {
	_, err := Load(t.TempDir())
	assert.ErrorContains(t, err, "no .hcl manifest files")
}

func TestLoadUndeclaredReference(t *testing.T) {
	dir := writeManifest(t, `
project "p" {}

output "email" {
  value = service_account.ghost.email
}
`)
	_, err := Load(dir)
	assert.ErrorContains(t, err, "undeclared service_account.ghost")
}

func TestLoadDuplicateProject(t *testing.T) {
	dir := writeManifest(t, `
project "one" {}
project "two" {}
`)
	_, err := Load(dir)
	assert.ErrorContains(t, err, "more than one project block")
}

func TestManifestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(m *Manifest)
		wantErr string
	}{
		{
			name:    "valid",
			mutate:  func(m *Manifest) {},
			wantErr: "",
		},
		{
			name:    "missing project",
			mutate:  func(m *Manifest) { m.Project.ID = "" },
			wantErr: "no project block",
		},
		{
			name: "duplicate account",
			mutate: func(m *Manifest) {
				m.ServiceAccounts = append(m.ServiceAccounts, m.ServiceAccounts[0])
			},
			wantErr: "duplicate service_account.fetcher",
		},
		{
			name: "bad account id",
			mutate: func(m *Manifest) {
				m.ServiceAccounts[0].AccountID = "X"
			},
			wantErr: "invalid account_id",
		},
		{
			name: "empty permissions",
			mutate: func(m *Manifest) {
				m.CustomRoles[0].Permissions = nil
			},
			wantErr: "permissions must not be empty",
		},
		{
			name: "bad resource spec",
			mutate: func(m *Manifest) {
				m.Bindings[0].Resource = "bucket/b"
			},
			wantErr: "invalid resource spec",
		},
		{
			name: "bad role form",
			mutate: func(m *Manifest) {
				m.Bindings[0].Role = "editor"
			},
			wantErr: "neither predefined nor custom",
		},
		{
			name: "empty members",
			mutate: func(m *Manifest) {
				m.Bindings[0].Members = nil
			},
			wantErr: "members must not be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Load("testdata")
			require.NoError(t, err)

			tt.mutate(m)
			err = m.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestAddresses(t *testing.T) {
	m, err := Load("testdata")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"binding.creator_snapshots",
		"binding.fetcher_metadata",
		"binding.fetcher_publish",
		"custom_role.snapshot_creator",
		"service_account.creator",
		"service_account.fetcher",
	}, m.Addresses())
}
