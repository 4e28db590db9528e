// Copyright (c) 2026 Jess Grable <jgrable@hey.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	doc := New("acme-data-prod")

	assert.Equal(t, FormatVersion, doc.Version)
	assert.Equal(t, int64(0), doc.Serial)
	assert.NotEmpty(t, doc.Lineage)
	assert.Equal(t, "acme-data-prod", doc.Project)
	assert.NotNil(t, doc.Outputs)

	// Lineage is unique per document.
	assert.NotEqual(t, doc.Lineage, New("acme-data-prod").Lineage)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	doc := New("acme-data-prod")
	doc.Serial = 3
	doc.Upsert(Resource{
		Type: "service_account",
		Name: "fetcher",
		ID:   "snap-fetcher@acme-data-prod.iam.gserviceaccount.com",
		Attributes: map[string]string{
			"account_id": "snap-fetcher",
		},
	})
	doc.Outputs["fetcher_email"] = "snap-fetcher@acme-data-prod.iam.gserviceaccount.com"

	raw, err := doc.Encode()
	require.NoError(t, err)

	got, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, doc.Serial, got.Serial)
	assert.Equal(t, doc.Lineage, got.Lineage)
	require.NotNil(t, got.Resource("service_account.fetcher"))
	assert.Equal(t, "snap-fetcher", got.Resource("service_account.fetcher").Attributes["account_id"])
	assert.Equal(t, doc.Outputs, got.Outputs)
}

func TestEncodeSortsResources(t *testing.T) {
	doc := New("p")
	doc.Upsert(Resource{Type: "service_account", Name: "fetcher", ID: "f"})
	doc.Upsert(Resource{Type: "binding", Name: "publish", ID: "b"})

	_, err := doc.Encode()
	require.NoError(t, err)

	assert.Equal(t, "binding.publish", doc.Resources[0].Address())
	assert.Equal(t, "service_account.fetcher", doc.Resources[1].Address())
}

func TestDecodeRejectsNewerFormat(t *testing.T) {
	_, err := Decode([]byte(`{"version": 99, "serial": 1, "lineage": "x"}`))
	assert.ErrorContains(t, err, "newer than supported")
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("not json"))
	assert.ErrorContains(t, err, "failed to decode state")
}

func TestDecodeDefaultsOutputs(t *testing.T) {
	doc, err := Decode([]byte(`{"version": 1, "serial": 0, "lineage": "x"}`))
	require.NoError(t, err)
	assert.NotNil(t, doc.Outputs)
}

func TestUpsertReplaces(t *testing.T) {
	doc := New("p")
	doc.Upsert(Resource{Type: "service_account", Name: "fetcher", ID: "old"})
	doc.Upsert(Resource{Type: "service_account", Name: "fetcher", ID: "new"})

	assert.Len(t, doc.Resources, 1)
	assert.Equal(t, "new", doc.Resource("service_account.fetcher").ID)
}

func TestRemove(t *testing.T) {
	doc := New("p")
	doc.Upsert(Resource{Type: "service_account", Name: "fetcher", ID: "f"})
	doc.Upsert(Resource{Type: "service_account", Name: "creator", ID: "c"})

	doc.Remove("service_account.fetcher")
	assert.Len(t, doc.Resources, 1)
	assert.Nil(t, doc.Resource("service_account.fetcher"))

	// Removing a missing address is a no-op.
	doc.Remove("service_account.fetcher")
	assert.Len(t, doc.Resources, 1)
}
