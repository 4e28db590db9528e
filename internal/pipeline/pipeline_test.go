// Copyright (c) 2026 Jess Grable <jgrable@hey.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableMessageRef(t *testing.T) {
	m := TableMessage{Project: "acme-data-prod", Dataset: "sales", Table: "orders"}
	assert.Equal(t, "acme-data-prod.sales.orders", m.Ref())
}

func TestTableMessageRoundTrip(t *testing.T) {
	m := TableMessage{
		Project: "acme-data-prod",
		Dataset: "sales",
		Table:   "orders",
		Ts:      time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}

	raw, err := m.Encode()
	require.NoError(t, err)

	got, err := DecodeTableMessage(raw)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestDecodeTableMessageRejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"garbage", "not json"},
		{"missing project", `{"dataset": "sales", "table": "orders"}`},
		{"missing dataset", `{"project": "p", "table": "orders"}`},
		{"missing table", `{"project": "p", "dataset": "sales"}`},
		{"empty object", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeTableMessage([]byte(tt.raw))
			assert.Error(t, err)
		})
	}
}
