// Copyright (c) 2026 Jess Grable <jgrable@hey.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package fetcher

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bigquery "google.golang.org/api/bigquery/v2"
	"google.golang.org/api/googleapi"

	"github.com/grable/snapctlgo/internal/pipeline"
)

// fakeLister serves datasets and tables out of maps, two entries per page to
// exercise pagination.
type fakeLister struct {
	datasets []string
	// tables maps dataset to tableID:type pairs.
	tables map[string]map[string]string
	// gone datasets 404 on their table list.
	gone map[string]bool
}

const pageSize = 2

func (l *fakeLister) Datasets(_ context.Context, pageToken string) (*bigquery.DatasetList, error) {
	start := 0
	if pageToken != "" {
		start, _ = strconv.Atoi(pageToken)
	}
	end := start + pageSize
	if end > len(l.datasets) {
		end = len(l.datasets)
	}

	page := &bigquery.DatasetList{}
	for _, id := range l.datasets[start:end] {
		page.Datasets = append(page.Datasets, &bigquery.DatasetListDatasets{
			DatasetReference: &bigquery.DatasetReference{DatasetId: id},
		})
	}
	if end < len(l.datasets) {
		page.NextPageToken = strconv.Itoa(end)
	}
	return page, nil
}

func (l *fakeLister) Tables(_ context.Context, datasetID, pageToken string) (*bigquery.TableList, error) {
	if l.gone[datasetID] {
		return nil, &googleapi.Error{Code: 404, Message: "Not found: Dataset " + datasetID}
	}

	var ids []string
	for id := range l.tables[datasetID] {
		ids = append(ids, id)
	}
	// Stable order so page boundaries line up across calls.
	sort.Strings(ids)

	start := 0
	if pageToken != "" {
		start, _ = strconv.Atoi(pageToken)
	}
	end := start + pageSize
	if end > len(ids) {
		end = len(ids)
	}

	page := &bigquery.TableList{}
	for _, id := range ids[start:end] {
		page.Tables = append(page.Tables, &bigquery.TableListTables{
			TableReference: &bigquery.TableReference{TableId: id},
			Type:           l.tables[datasetID][id],
		})
	}
	if end < len(ids) {
		page.NextPageToken = strconv.Itoa(end)
	}
	return page, nil
}

// fakePublisher records published batches.
type fakePublisher struct {
	batches [][]pipeline.TableMessage
	err     error
}

func (p *fakePublisher) Publish(_ context.Context, msgs []pipeline.TableMessage) error {
	if p.err != nil {
		return p.err
	}
	batch := append([]pipeline.TableMessage(nil), msgs...)
	p.batches = append(p.batches, batch)
	return nil
}

func (p *fakePublisher) refs() []string {
	var out []string
	for _, batch := range p.batches {
		for _, m := range batch {
			out = append(out, m.Ref())
		}
	}
	return out
}

func testLister() *fakeLister {
	return &fakeLister{
		datasets: []string{"sales", "marketing", "staging_tmp"},
		tables: map[string]map[string]string{
			"sales": {
				"orders":    "TABLE",
				"customers": "TABLE",
				"daily":     "VIEW",
			},
			"marketing": {
				"campaigns": "TABLE",
			},
			"staging_tmp": {
				"scratch": "TABLE",
			},
		},
	}
}

func TestRunPublishesBaseTables(t *testing.T) {
	pub := &fakePublisher{}
	f := &Fetcher{Project: "acme-data-prod", Lister: testLister(), Publisher: pub}

	sum, err := f.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, sum.Datasets)
	assert.Equal(t, 4, sum.Tables)
	assert.Equal(t, 4, sum.Published)

	refs := pub.refs()
	assert.Len(t, refs, 4)
	assert.Contains(t, refs, "acme-data-prod.sales.orders")
	assert.Contains(t, refs, "acme-data-prod.marketing.campaigns")
	// The view never gets published.
	assert.NotContains(t, refs, "acme-data-prod.sales.daily")
}

func TestRunDatasetPrefixes(t *testing.T) {
	pub := &fakePublisher{}
	f := &Fetcher{
		Project:   "acme-data-prod",
		Lister:    testLister(),
		Publisher: pub,
		Opts:      Options{DatasetPrefixes: []string{"sales"}},
	}

	sum, err := f.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Datasets)
	assert.Equal(t, 2, sum.Published)
}

func TestRunExcludePrefixes(t *testing.T) {
	pub := &fakePublisher{}
	f := &Fetcher{
		Project:   "acme-data-prod",
		Lister:    testLister(),
		Publisher: pub,
		Opts:      Options{ExcludePrefixes: []string{"staging_"}},
	}

	sum, err := f.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Datasets)
	assert.NotContains(t, pub.refs(), "acme-data-prod.staging_tmp.scratch")
}

func TestRunBatchesByBatchSize(t *testing.T) {
	pub := &fakePublisher{}
	f := &Fetcher{
		Project:   "acme-data-prod",
		Lister:    testLister(),
		Publisher: pub,
		Opts:      Options{BatchSize: 1},
	}

	sum, err := f.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Published)
	assert.Len(t, pub.batches, 4)
	for _, batch := range pub.batches {
		assert.Len(t, batch, 1)
	}
}

func TestRunSkipsVanishedDataset(t *testing.T) {
	lister := testLister()
	lister.gone = map[string]bool{"sales": true}
	pub := &fakePublisher{}
	f := &Fetcher{Project: "acme-data-prod", Lister: lister, Publisher: pub}

	sum, err := f.Run(context.Background())
	require.NoError(t, err)

	// The vanished dataset contributes nothing; the rest still publish.
	assert.Equal(t, 2, sum.Published)
	assert.NotContains(t, pub.refs(), "acme-data-prod.sales.orders")
}

func TestRunPublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("topic not found")}
	f := &Fetcher{
		Project:   "acme-data-prod",
		Lister:    testLister(),
		Publisher: pub,
		Opts:      Options{BatchSize: 1},
	}

	_, err := f.Run(context.Background())
	assert.ErrorContains(t, err, "failed to publish batch")
}

func TestWantDataset(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		id   string
		want bool
	}{
		{"no filters", Options{}, "sales", true},
		{"prefix match", Options{DatasetPrefixes: []string{"sales"}}, "sales_eu", true},
		{"prefix miss", Options{DatasetPrefixes: []string{"sales"}}, "marketing", false},
		{"excluded", Options{ExcludePrefixes: []string{"staging_"}}, "staging_tmp", false},
		{
			"exclude wins over include",
			Options{DatasetPrefixes: []string{"s"}, ExcludePrefixes: []string{"staging_"}},
			"staging_tmp",
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &Fetcher{Opts: tt.opts}
			assert.Equal(t, tt.want, f.wantDataset(tt.id))
		})
	}
}
