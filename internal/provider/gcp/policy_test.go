// Copyright (c) 2026 Jess Grable <jgrable@hey.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package gcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bigquery "google.golang.org/api/bigquery/v2"
	"google.golang.org/api/option"
)

func newDatasetPolicy(t *testing.T, handler http.Handler) *datasetPolicy {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := bigquery.NewService(context.Background(),
		option.WithEndpoint(srv.URL), option.WithoutAuthentication())
	require.NoError(t, err)

	return &datasetPolicy{bq: svc, project: "acme-data-prod"}
}

func TestDatasetGrantRetriesOnEtagConflict(t *testing.T) {
	gets, patches := 0, 0
	var lastPatch bigquery.Dataset

	dp := newDatasetPolicy(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			gets++
			fmt.Fprintf(w, `{"etag":"e%d","access":[]}`, gets)
		case http.MethodPatch:
			patches++
			if patches == 1 {
				// A concurrent writer got there first.
				w.WriteHeader(http.StatusConflict)
				fmt.Fprint(w, `{"error":{"code":409,"message":"etag mismatch"}}`)
				return
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&lastPatch))
			fmt.Fprint(w, `{}`)
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	}))

	err := dp.grant(context.Background(), "sales", "READER",
		[]string{"serviceAccount:snap-fetcher@acme-data-prod.iam.gserviceaccount.com"})
	require.NoError(t, err)

	// The conflict forced a re-read; the second patch carries the fresh etag.
	assert.Equal(t, 2, gets)
	assert.Equal(t, 2, patches)
	assert.Equal(t, "e2", lastPatch.Etag)
	require.Len(t, lastPatch.Access, 1)
	assert.Equal(t, "snap-fetcher@acme-data-prod.iam.gserviceaccount.com",
		lastPatch.Access[0].UserByEmail)
}

func TestDatasetGrantGivesUpAfterPersistedConflict(t *testing.T) {
	patches := 0

	dp := newDatasetPolicy(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			fmt.Fprint(w, `{"etag":"e1","access":[]}`)
			return
		}
		patches++
		w.WriteHeader(http.StatusConflict)
		fmt.Fprint(w, `{"error":{"code":409,"message":"etag mismatch"}}`)
	}))

	err := dp.grant(context.Background(), "sales", "READER",
		[]string{"serviceAccount:snap-fetcher@acme-data-prod.iam.gserviceaccount.com"})
	assert.ErrorContains(t, err, "dataset policy conflict persisted")
	assert.Equal(t, policyAttempts, patches)
}

func TestDatasetGrantSkipsPatchWhenAlreadyGranted(t *testing.T) {
	patches := 0

	dp := newDatasetPolicy(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			fmt.Fprint(w, `{"etag":"e1","access":[{"role":"READER",`+
				`"userByEmail":"snap-fetcher@acme-data-prod.iam.gserviceaccount.com"}]}`)
			return
		}
		patches++
		fmt.Fprint(w, `{}`)
	}))

	err := dp.grant(context.Background(), "sales", "READER",
		[]string{"serviceAccount:snap-fetcher@acme-data-prod.iam.gserviceaccount.com"})
	require.NoError(t, err)
	assert.Zero(t, patches)
}

func TestDatasetRevokeMissingDatasetIsNoop(t *testing.T) {
	dp := newDatasetPolicy(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":{"code":404,"message":"dataset gone"}}`)
	}))

	err := dp.revoke(context.Background(), "sales", "READER",
		[]string{"serviceAccount:snap-fetcher@acme-data-prod.iam.gserviceaccount.com"})
	assert.NoError(t, err)
}

func TestDatasetRevokeDropsOnlyMatchingEntries(t *testing.T) {
	var lastPatch bigquery.Dataset

	dp := newDatasetPolicy(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			fmt.Fprint(w, `{"etag":"e1","access":[`+
				`{"role":"READER","userByEmail":"snap-fetcher@acme-data-prod.iam.gserviceaccount.com"},`+
				`{"role":"OWNER","userByEmail":"admin@acme.example"}]}`)
			return
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&lastPatch))
		fmt.Fprint(w, `{}`)
	}))

	err := dp.revoke(context.Background(), "sales", "READER",
		[]string{"serviceAccount:snap-fetcher@acme-data-prod.iam.gserviceaccount.com"})
	require.NoError(t, err)

	require.Len(t, lastPatch.Access, 1)
	assert.Equal(t, "admin@acme.example", lastPatch.Access[0].UserByEmail)
}
