// Copyright (c) 2026 Jess Grable <jgrable@hey.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"time"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"
	bigquery "google.golang.org/api/bigquery/v2"
	pubsub "google.golang.org/api/pubsub/v1"

	"github.com/grable/snapctlgo/internal/meta"
	"github.com/grable/snapctlgo/internal/pipeline/creator"
)

// SnapCommandAction consumes table messages from the subscription and
// creates one snapshot per table. Partial failures are reported per table
// and the command exits non-zero if any table failed.
func SnapCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args[1:])

	if ShortCircuitTLDR(ctx, cmd, "snap") {
		return nil
	}

	project, topic, err := resolvePipelineTarget(cmd)
	if err != nil {
		return err
	}

	subscription := cmd.String("subscription")
	if subscription == "" {
		subscription = topic + "-sub"
	}

	psSvc, err := pubsub.NewService(ctx)
	if err != nil {
		return fmt.Errorf("failed to create pubsub client: %w", err)
	}
	bqSvc, err := bigquery.NewService(ctx)
	if err != nil {
		return fmt.Errorf("failed to create bigquery client: %w", err)
	}

	c := &creator.Creator{
		Source: &creator.SubscriptionSource{
			Subscription: fmt.Sprintf("projects/%s/subscriptions/%s", project, subscription),
			Svc:          psSvc,
		},
		Snapshotter: &creator.SnapshotJobs{
			Project:     project,
			Svc:         bqSvc,
			ExpireAfter: cmd.Duration("expire"),
		},
		Opts: creator.Options{
			Workers:      int(cmd.Int("workers")),
			MaxAttempts:  int(cmd.Int("max-attempts")),
			Drain:        !cmd.Bool("follow"),
			PollInterval: cmd.Duration("poll"),
			Retryable:    creator.Retryable,
		},
	}

	sum, err := c.Run(ctx)

	fmt.Printf("snapshots: %d created, %d skipped, %d failed\n",
		sum.Created, sum.Skipped, len(sum.Failed))
	for _, ref := range sum.FailedRefs() {
		log.Errorf("%s: %v", ref, sum.Failed[ref])
	}

	return err
}

// SnapCommandBuilder constructs the cli.Command for "snap".
func SnapCommandBuilder(app *cli.Command, meta meta.Meta) *cli.Command {
	return (&QueryCommandBuilder{
		Name:      "snap",
		Usage:     "create snapshots from queued table messages",
		UsageText: `snapctl snap [RootDir] [options]`,
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "expire",
				Usage: "snapshot expiration, e.g. 720h. Zero keeps forever",
			},
			&cli.BoolFlag{
				Name:        "follow",
				Usage:       "keep pulling instead of stopping when the queue drains",
				HideDefault: true,
			},
			&cli.IntFlag{
				Name:  "max-attempts",
				Usage: "attempts per table for retryable errors",
				Value: 3,
			},
			&cli.DurationFlag{
				Name:  "poll",
				Usage: "pause between empty pulls with --follow",
				Value: time.Second,
			},
			&cli.StringFlag{
				Name:  "subscription",
				Usage: "subscription to pull from. Defaults to <topic>-sub",
				Sources: cli.NewValueSourceChain(
					cli.EnvVar("SNAPCTL_SUBSCRIPTION"),
				),
			},
			&cli.StringFlag{
				Name:  "topic",
				Usage: "topic whose subscription to pull from. Overrides the manifest",
				Sources: cli.NewValueSourceChain(
					cli.EnvVar("SNAPCTL_TOPIC"),
				),
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "concurrent snapshot workers",
				Value: 4,
			},
			NewProjectFlag("snap", meta.Config.Source),
		},
		Action: SnapCommandAction,
		Meta:   meta,
	}).Build()
}
