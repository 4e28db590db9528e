// Copyright (c) 2026 Jess Grable <jgrable@hey.com>.
// SPDX-License-Identifier: Apache-2.0

package creator

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/apex/log"
	bigquery "google.golang.org/api/bigquery/v2"
	"google.golang.org/api/googleapi"
	pubsub "google.golang.org/api/pubsub/v1"

	"github.com/grable/snapctlgo/internal/pipeline"
)

// SubscriptionSource is the production Source over the Pub/Sub API.
type SubscriptionSource struct {
	// Subscription is the full name, projects/<p>/subscriptions/<s>.
	Subscription string
	Svc          *pubsub.Service
}

func (s *SubscriptionSource) Pull(ctx context.Context, max int) ([]Received, error) {
	resp, err := s.Svc.Projects.Subscriptions.Pull(s.Subscription, &pubsub.PullRequest{
		MaxMessages: int64(max),
	}).Context(ctx).Do()
	if err != nil {
		return nil, err
	}

	var out []Received
	for _, rm := range resp.ReceivedMessages {
		raw, err := base64.StdEncoding.DecodeString(rm.Message.Data)
		if err != nil {
			log.WithError(err).Error("dropping message with undecodable payload")
			raw = nil
		}
		out = append(out, Received{AckID: rm.AckId, Data: raw})
	}
	return out, nil
}

func (s *SubscriptionSource) Ack(ctx context.Context, ackIDs []string) error {
	_, err := s.Svc.Projects.Subscriptions.Acknowledge(s.Subscription, &pubsub.AcknowledgeRequest{
		AckIds: ackIDs,
	}).Context(ctx).Do()
	return err
}

// Nack sets the ack deadline to zero, the API's way of requesting immediate
// redelivery.
func (s *SubscriptionSource) Nack(ctx context.Context, ackIDs []string) error {
	_, err := s.Svc.Projects.Subscriptions.ModifyAckDeadline(s.Subscription, &pubsub.ModifyAckDeadlineRequest{
		AckIds:             ackIDs,
		AckDeadlineSeconds: 0,
	}).Context(ctx).Do()
	return err
}

// SnapshotJobs creates table snapshots with BigQuery copy jobs. Job IDs are
// derived from the message, so a redelivered message lands on the job it
// already started instead of creating a second snapshot.
type SnapshotJobs struct {
	Project string
	Svc     *bigquery.Service
	// ExpireAfter sets the snapshot's expiration. Zero means keep forever.
	ExpireAfter time.Duration
	// PollInterval paces job status checks. Zero means a second.
	PollInterval time.Duration
}

func (s *SnapshotJobs) Snapshot(ctx context.Context, msg pipeline.TableMessage) error {
	suffix := SnapshotSuffix(msg.Ts)
	jobID := fmt.Sprintf("snapctl_%s_%s_%s", msg.Dataset, msg.Table, suffix)

	cfg := &bigquery.JobConfigurationTableCopy{
		OperationType: "SNAPSHOT",
		SourceTable: &bigquery.TableReference{
			ProjectId: msg.Project,
			DatasetId: msg.Dataset,
			TableId:   msg.Table,
		},
		DestinationTable: &bigquery.TableReference{
			ProjectId: msg.Project,
			DatasetId: msg.Dataset,
			TableId:   fmt.Sprintf("%s_%s", msg.Table, suffix),
		},
		WriteDisposition: "WRITE_EMPTY",
	}
	if s.ExpireAfter > 0 {
		cfg.DestinationExpirationTime = msg.Ts.Add(s.ExpireAfter).UTC().Format(time.RFC3339)
	}

	job := &bigquery.Job{
		JobReference: &bigquery.JobReference{
			ProjectId: s.Project,
			JobId:     jobID,
		},
		Configuration: &bigquery.JobConfiguration{Copy: cfg},
	}

	if _, err := s.Svc.Jobs.Insert(s.Project, job).Context(ctx).Do(); err != nil {
		// A duplicate job id means this message already got a job going.
		// Fall through and wait on it.
		if !isStatus(err, http.StatusConflict) {
			return err
		}
		log.Debugf("%s: job %s already exists", msg.Ref(), jobID)
	}

	return s.wait(ctx, jobID, msg)
}

func (s *SnapshotJobs) wait(ctx context.Context, jobID string, msg pipeline.TableMessage) error {
	interval := s.PollInterval
	if interval <= 0 {
		interval = time.Second
	}

	for {
		job, err := s.Svc.Jobs.Get(s.Project, jobID).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("failed to get job %s: %w", jobID, err)
		}

		if job.Status != nil && job.Status.State == "DONE" {
			if res := job.Status.ErrorResult; res != nil {
				if res.Reason == "duplicate" {
					return ErrExists
				}
				return fmt.Errorf("snapshot job %s failed: %s: %s", jobID, res.Reason, res.Message)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// Retryable reports whether an API error is transient.
func Retryable(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	switch gerr.Code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func isStatus(err error, code int) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == code
}
