// Copyright (c) 2026 Jess Grable <jgrable@hey.com>.
// SPDX-License-Identifier: Apache-2.0

// Package creator consumes table messages from the subscription and creates
// one BigQuery snapshot per table.
package creator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/cenkalti/backoff/v4"

	"github.com/grable/snapctlgo/internal/pipeline"
)

// Received is one pulled queue message.
type Received struct {
	AckID string
	Data  []byte
}

// Source pulls and settles queue messages.
type Source interface {
	Pull(ctx context.Context, max int) ([]Received, error)
	Ack(ctx context.Context, ackIDs []string) error
	// Nack returns messages to the queue for redelivery.
	Nack(ctx context.Context, ackIDs []string) error
}

// Snapshotter creates one snapshot. ErrExists means the snapshot is already
// there and the table counts as done.
type Snapshotter interface {
	Snapshot(ctx context.Context, msg pipeline.TableMessage) error
}

// ErrExists is returned by a Snapshotter when the destination already
// exists. The creator treats it as success.
var ErrExists = fmt.Errorf("snapshot already exists")

// Options tunes one creator run.
type Options struct {
	Workers int
	// MaxAttempts bounds retries of retryable snapshot errors.
	MaxAttempts int
	// Drain stops the run on the first empty pull instead of blocking.
	Drain bool
	// PollInterval paces the next pull after an empty response when not
	// draining. Zero means one second.
	PollInterval time.Duration
	// Retryable reports whether an error is worth retrying. Nil means
	// nothing retries.
	Retryable func(error) bool
}

// Summary is the partial-failure report for one run. Any Failed entry means
// the run as a whole did not succeed.
type Summary struct {
	Created int
	Skipped int
	Failed  map[string]error
}

func (s *Summary) failed(ref string, err error) {
	if s.Failed == nil {
		s.Failed = map[string]error{}
	}
	s.Failed[ref] = err
}

// FailedRefs returns the failed table refs, sorted.
func (s *Summary) FailedRefs() []string {
	var refs []string
	for ref := range s.Failed {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}

type Creator struct {
	Source      Source
	Snapshotter Snapshotter
	Opts        Options
}

// Run pulls until the subscription drains (or ctx is done) and snapshots
// each table on a bounded worker pool. One table failing never stops the
// others; everything is tallied into the summary.
func (c *Creator) Run(ctx context.Context) (*Summary, error) {
	workers := c.Opts.Workers
	if workers < 1 {
		workers = 4
	}

	sum := &Summary{}
	var mu sync.Mutex

	work := make(chan Received)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := range work {
				c.handle(ctx, r, sum, &mu)
			}
		}()
	}

	var runErr error
	for {
		if ctx.Err() != nil {
			runErr = ctx.Err()
			break
		}

		msgs, err := c.Source.Pull(ctx, workers*2)
		if err != nil {
			runErr = fmt.Errorf("failed to pull messages: %w", err)
			break
		}
		if len(msgs) == 0 {
			if c.Opts.Drain {
				break
			}
			// An idle subscription must not be hot-polled.
			select {
			case <-ctx.Done():
			case <-time.After(c.pollInterval()):
			}
			continue
		}

		for _, r := range msgs {
			work <- r
		}
	}

	close(work)
	wg.Wait()

	log.Infof("snapshots: %d created, %d skipped, %d failed",
		sum.Created, sum.Skipped, len(sum.Failed))

	if runErr != nil {
		return sum, runErr
	}
	if len(sum.Failed) > 0 {
		return sum, fmt.Errorf("%d tables failed to snapshot", len(sum.Failed))
	}
	return sum, nil
}

// handle settles exactly one message: ack on success or permanent failure,
// nack only when a retryable error exhausts its attempts so redelivery can
// have another go.
func (c *Creator) handle(ctx context.Context, r Received, sum *Summary, mu *sync.Mutex) {
	msg, err := pipeline.DecodeTableMessage(r.Data)
	if err != nil {
		log.WithError(err).Error("dropping undecodable message")
		c.settle(ctx, r.AckID, true)
		mu.Lock()
		sum.failed("ack:"+r.AckID, err)
		mu.Unlock()
		return
	}

	err = c.snapshotWithRetry(ctx, msg)

	mu.Lock()
	switch {
	case err == nil:
		sum.Created++
	case err == ErrExists:
		sum.Skipped++
		err = nil
	default:
		sum.failed(msg.Ref(), err)
	}
	mu.Unlock()

	if err == nil {
		c.settle(ctx, r.AckID, true)
		return
	}
	if c.retryable(err) {
		log.WithError(err).Warnf("%s: retries exhausted, returning to queue", msg.Ref())
		c.settle(ctx, r.AckID, false)
		return
	}
	log.WithError(err).Errorf("%s: permanent failure", msg.Ref())
	c.settle(ctx, r.AckID, true)
}

func (c *Creator) snapshotWithRetry(ctx context.Context, msg pipeline.TableMessage) error {
	attempts := c.Opts.MaxAttempts
	if attempts < 1 {
		attempts = 3
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(attempts-1)), ctx)

	return backoff.Retry(func() error {
		err := c.Snapshotter.Snapshot(ctx, msg)
		if err == nil {
			return nil
		}
		if c.retryable(err) {
			log.WithError(err).Debugf("%s: retrying", msg.Ref())
			return err
		}
		return backoff.Permanent(err)
	}, bo)
}

func (c *Creator) pollInterval() time.Duration {
	if c.Opts.PollInterval > 0 {
		return c.Opts.PollInterval
	}
	return time.Second
}

func (c *Creator) retryable(err error) bool {
	if err == ErrExists || c.Opts.Retryable == nil {
		return false
	}
	return c.Opts.Retryable(err)
}

func (c *Creator) settle(ctx context.Context, ackID string, ack bool) {
	var err error
	if ack {
		err = c.Source.Ack(ctx, []string{ackID})
	} else {
		err = c.Source.Nack(ctx, []string{ackID})
	}
	if err != nil {
		log.WithError(err).Warn("failed to settle message")
	}
}

// SnapshotSuffix renders the timestamp suffix appended to destination table
// names.
func SnapshotSuffix(ts time.Time) string {
	return ts.UTC().Format("20060102150405")
}
