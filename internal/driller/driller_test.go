// Copyright (c) 2026 Jess Grable <jgrable@hey.com>.
// SPDX-License-Identifier: MIT

package driller

import (
	"testing"
)

func TestDriller(t *testing.T) {
	tests := []struct {
		name        string
		json        string
		path        string
		expectedStr string
		isNil       bool
		isArray     bool
	}{
		{
			name:        "simple string key",
			json:        `{"name": "fetcher"}`,
			path:        "name",
			expectedStr: "fetcher",
		},
		{
			name:        "simple number key",
			json:        `{"serial": 42}`,
			path:        "serial",
			expectedStr: "42",
		},
		{
			name:        "simple boolean key",
			json:        `{"disabled": true}`,
			path:        "disabled",
			expectedStr: "true",
		},
		{
			name:  "simple null key",
			json:  `{"value": null}`,
			path:  "value",
			isNil: true,
		},
		{
			name:        "nested single level",
			json:        `{"attributes": {"email": "a@b.iam.gserviceaccount.com"}}`,
			path:        "attributes.email",
			expectedStr: "a@b.iam.gserviceaccount.com",
		},
		{
			name:        "nested multiple levels",
			json:        `{"root": {"sub": {"deep": "value"}}}`,
			path:        "root.sub.deep",
			expectedStr: "value",
		},
		{
			name:        "single element array returns element",
			json:        `{"members": ["only"]}`,
			path:        "members",
			expectedStr: "only",
		},
		{
			name:        "single element array of objects drills through",
			json:        `{"resources": [{"id": "first"}]}`,
			path:        "resources.id",
			expectedStr: "first",
		},
		{
			name:    "multi element array returns array",
			json:    `{"members": ["first", "second"]}`,
			path:    "members",
			isArray: true,
		},
		{
			name:        "array with explicit index",
			json:        `{"members": ["first", "second", "third"]}`,
			path:        "members[1]",
			expectedStr: "second",
		},
		{
			name:        "nested object with array access",
			json:        `{"binding": {"members": ["admin", "user"]}}`,
			path:        "binding.members[0]",
			expectedStr: "admin",
		},
		{
			name:        "array of objects with explicit index",
			json:        `{"resources": [{"type": "service_account", "name": "fetcher"}, {"type": "custom_role", "name": "snapper"}]}`,
			path:        "resources[1].name",
			expectedStr: "snapper",
		},
		{
			name:        "deeply nested structure",
			json:        `{"document": {"resources": [{"type": "binding", "attributes": {"role": "roles/bigquery.dataViewer"}}]}}`,
			path:        "document.resources[0].attributes.role",
			expectedStr: "roles/bigquery.dataViewer",
		},
		{
			name:  "nonexistent key returns empty result",
			json:  `{"name": "fetcher"}`,
			path:  "missing",
			isNil: true,
		},
		{
			name:  "invalid array index returns empty result",
			json:  `{"members": ["a", "b"]}`,
			path:  "members[10]",
			isNil: true,
		},
		{
			name:  "empty array with index returns empty result",
			json:  `{"members": []}`,
			path:  "members[0]",
			isNil: true,
		},
		{
			name:        "key with underscore",
			json:        `{"account_id": "table-fetcher"}`,
			path:        "account_id",
			expectedStr: "table-fetcher",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Driller(tt.json, tt.path)

			if tt.isNil {
				if result.Exists() && result.Type.String() != "Null" {
					t.Errorf("Expected nil/empty result but got: %v", result.Value())
				}
				return
			}

			if !result.Exists() {
				t.Errorf("Expected result but got nil/empty")
				return
			}

			if tt.isArray {
				if !result.IsArray() {
					t.Errorf("Expected array but got: %v (type: %T)", result.Value(), result.Value())
				}
				return
			}

			if val := result.String(); val != tt.expectedStr {
				t.Errorf("Expected %q but got %q", tt.expectedStr, val)
			}
		})
	}
}
