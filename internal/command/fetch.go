// Copyright (c) 2026 Jess Grable <jgrable@hey.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"
	bigquery "google.golang.org/api/bigquery/v2"
	pubsub "google.golang.org/api/pubsub/v1"

	"github.com/grable/snapctlgo/internal/meta"
	"github.com/grable/snapctlgo/internal/pipeline"
	"github.com/grable/snapctlgo/internal/pipeline/fetcher"
)

// FetchCommandAction enumerates snapshot-eligible tables and publishes one
// message per table onto the pipeline topic.
func FetchCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args[1:])

	if ShortCircuitTLDR(ctx, cmd, "fetch") {
		return nil
	}

	project, topic, err := resolvePipelineTarget(cmd)
	if err != nil {
		return err
	}

	bqSvc, err := bigquery.NewService(ctx)
	if err != nil {
		return fmt.Errorf("failed to create bigquery client: %w", err)
	}

	var pub fetcher.Publisher
	if cmd.Bool("dry-run") {
		pub = dryRunPublisher{}
	} else {
		psSvc, err := pubsub.NewService(ctx)
		if err != nil {
			return fmt.Errorf("failed to create pubsub client: %w", err)
		}
		pub = &fetcher.TopicPublisher{
			Topic: fmt.Sprintf("projects/%s/topics/%s", project, topic),
			Svc:   psSvc,
		}
	}

	f := &fetcher.Fetcher{
		Project:   project,
		Lister:    &fetcher.BigQueryLister{Project: project, Svc: bqSvc},
		Publisher: pub,
		Opts: fetcher.Options{
			DatasetPrefixes: splitPrefixes(cmd.String("dataset")),
			ExcludePrefixes: splitPrefixes(cmd.String("exclude")),
			BatchSize:       int(cmd.Int("batch")),
		},
	}

	sum, err := f.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("fetched %d tables across %d datasets, published %d\n",
		sum.Tables, sum.Datasets, sum.Published)
	return nil
}

// resolvePipelineTarget returns the project and topic, preferring flags and
// falling back to the manifest's project block.
func resolvePipelineTarget(cmd *cli.Command) (string, string, error) {
	project := cmd.String("project")
	topic := cmd.String("topic")
	if project != "" && topic != "" {
		return project, topic, nil
	}

	mf, err := LoadManifest(cmd)
	if err != nil {
		return "", "", fmt.Errorf("no --project/--topic and no manifest: %w", err)
	}
	if project == "" {
		project = mf.Project.ID
	}
	if topic == "" {
		topic = mf.Project.Topic
	}
	if topic == "" {
		return "", "", fmt.Errorf("no topic configured: set --topic or the manifest project.topic")
	}
	return project, topic, nil
}

func splitPrefixes(spec string) []string {
	if spec == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(spec, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// dryRunPublisher logs what would be published instead of publishing.
type dryRunPublisher struct{}

func (dryRunPublisher) Publish(ctx context.Context, msgs []pipeline.TableMessage) error {
	for _, m := range msgs {
		log.Infof("would publish %s", m.Ref())
	}
	return nil
}

// FetchCommandBuilder constructs the cli.Command for "fetch".
func FetchCommandBuilder(app *cli.Command, meta meta.Meta) *cli.Command {
	return (&QueryCommandBuilder{
		Name:      "fetch",
		Usage:     "enumerate tables and publish snapshot work",
		UsageText: `snapctl fetch [RootDir] [options]`,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "batch",
				Usage: "messages per publish call",
				Value: fetcher.MaxBatch,
			},
			&cli.StringFlag{
				Name:  "dataset",
				Usage: "comma-separated dataset prefixes to include",
			},
			&cli.BoolFlag{
				Name:        "dry-run",
				Usage:       "log what would be published without publishing",
				HideDefault: true,
			},
			&cli.StringFlag{
				Name:  "exclude",
				Usage: "comma-separated dataset prefixes to skip",
			},
			&cli.StringFlag{
				Name:  "topic",
				Usage: "topic to publish to. Overrides the manifest",
				Sources: cli.NewValueSourceChain(
					cli.EnvVar("SNAPCTL_TOPIC"),
				),
			},
			NewProjectFlag("fetch", meta.Config.Source),
		},
		Action: FetchCommandAction,
		Meta:   meta,
	}).Build()
}
