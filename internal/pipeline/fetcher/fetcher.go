// Copyright (c) 2026 Jess Grable <jgrable@hey.com>.
// SPDX-License-Identifier: Apache-2.0

// Package fetcher enumerates every snapshot-eligible table in a project and
// fans the list out onto the pipeline topic.
package fetcher

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/apex/log"
	bigquery "google.golang.org/api/bigquery/v2"
	"google.golang.org/api/googleapi"
	pubsub "google.golang.org/api/pubsub/v1"

	"github.com/grable/snapctlgo/internal/pipeline"
)

// MaxBatch is the most messages published per Publish call, matching the
// service-side limit.
const MaxBatch = 100

// maxPages bounds any one pageToken loop in case the service hands back a
// token that never advances.
const maxPages = 10000

// Lister pages through datasets and tables.
type Lister interface {
	Datasets(ctx context.Context, pageToken string) (*bigquery.DatasetList, error)
	Tables(ctx context.Context, datasetID, pageToken string) (*bigquery.TableList, error)
}

// Publisher delivers batches of table messages to the topic.
type Publisher interface {
	Publish(ctx context.Context, msgs []pipeline.TableMessage) error
}

// Options filters what the fetcher enumerates.
type Options struct {
	// DatasetPrefixes limits enumeration to datasets with one of these
	// prefixes. Empty means every dataset.
	DatasetPrefixes []string
	// ExcludePrefixes drops datasets with one of these prefixes. Applied
	// after DatasetPrefixes.
	ExcludePrefixes []string
	BatchSize       int
}

// Summary reports what one fetch run enumerated and published.
type Summary struct {
	Datasets  int
	Tables    int
	Published int
}

// Fetcher walks datasets and tables and publishes one message per table.
type Fetcher struct {
	Project   string
	Lister    Lister
	Publisher Publisher
	Opts      Options
}

// Run enumerates and publishes. Only BASE TABLEs are published; views,
// materialized views and existing snapshots would fail or recurse.
func (f *Fetcher) Run(ctx context.Context) (*Summary, error) {
	sum := &Summary{}
	batchSize := f.Opts.BatchSize
	if batchSize <= 0 || batchSize > MaxBatch {
		batchSize = MaxBatch
	}

	var batch []pipeline.TableMessage
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := f.Publisher.Publish(ctx, batch); err != nil {
			return fmt.Errorf("failed to publish batch: %w", err)
		}
		sum.Published += len(batch)
		batch = batch[:0]
		return nil
	}

	now := time.Now().UTC()
	pageToken := ""
	for pages := 0; pages < maxPages; pages++ {
		page, err := f.Lister.Datasets(ctx, pageToken)
		if err != nil {
			return sum, fmt.Errorf("failed to list datasets: %w", err)
		}

		for _, ds := range page.Datasets {
			datasetID := ds.DatasetReference.DatasetId
			if !f.wantDataset(datasetID) {
				log.Debugf("skipping dataset %s", datasetID)
				continue
			}
			sum.Datasets++

			if err := f.fetchTables(ctx, datasetID, now, batchSize, &batch, flush, sum); err != nil {
				return sum, err
			}
		}

		pageToken = page.NextPageToken
		if pageToken == "" {
			break
		}
	}

	if err := flush(); err != nil {
		return sum, err
	}

	log.Infof("fetched %d tables across %d datasets, published %d",
		sum.Tables, sum.Datasets, sum.Published)
	return sum, nil
}

func (f *Fetcher) fetchTables(ctx context.Context, datasetID string, ts time.Time,
	batchSize int, batch *[]pipeline.TableMessage, flush func() error, sum *Summary) error {

	pageToken := ""
	for pages := 0; pages < maxPages; pages++ {
		page, err := f.Lister.Tables(ctx, datasetID, pageToken)
		if err != nil {
			// The dataset can vanish between the dataset list and here.
			var gerr *googleapi.Error
			if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
				log.Warnf("dataset %s disappeared mid-fetch, skipping", datasetID)
				return nil
			}
			return fmt.Errorf("failed to list tables in %s: %w", datasetID, err)
		}

		for _, t := range page.Tables {
			if t.Type != "TABLE" {
				continue
			}
			sum.Tables++
			*batch = append(*batch, pipeline.TableMessage{
				Project: f.Project,
				Dataset: datasetID,
				Table:   t.TableReference.TableId,
				Ts:      ts,
			})
			if len(*batch) >= batchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}

		pageToken = page.NextPageToken
		if pageToken == "" {
			break
		}
	}
	return nil
}

func (f *Fetcher) wantDataset(datasetID string) bool {
	if len(f.Opts.DatasetPrefixes) > 0 {
		matched := false
		for _, p := range f.Opts.DatasetPrefixes {
			if strings.HasPrefix(datasetID, p) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	for _, p := range f.Opts.ExcludePrefixes {
		if strings.HasPrefix(datasetID, p) {
			return false
		}
	}
	return true
}

// BigQueryLister is the production Lister over the BigQuery API.
type BigQueryLister struct {
	Project string
	Svc     *bigquery.Service
}

func (l *BigQueryLister) Datasets(ctx context.Context, pageToken string) (*bigquery.DatasetList, error) {
	call := l.Svc.Datasets.List(l.Project).Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	return call.Do()
}

func (l *BigQueryLister) Tables(ctx context.Context, datasetID, pageToken string) (*bigquery.TableList, error) {
	call := l.Svc.Tables.List(l.Project, datasetID).Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	return call.Do()
}

// TopicPublisher is the production Publisher over the Pub/Sub API.
type TopicPublisher struct {
	// Topic is the full name, projects/<p>/topics/<t>.
	Topic string
	Svc   *pubsub.Service
}

func (p *TopicPublisher) Publish(ctx context.Context, msgs []pipeline.TableMessage) error {
	req := &pubsub.PublishRequest{}
	for _, m := range msgs {
		raw, err := m.Encode()
		if err != nil {
			return err
		}
		req.Messages = append(req.Messages, &pubsub.PubsubMessage{
			Data: base64.StdEncoding.EncodeToString(raw),
		})
	}
	_, err := p.Svc.Projects.Topics.Publish(p.Topic, req).Context(ctx).Do()
	return err
}
