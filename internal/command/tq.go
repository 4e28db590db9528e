// Copyright (c) 2026 Jess Grable <jgrable@hey.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
	bigquery "google.golang.org/api/bigquery/v2"

	"github.com/grable/snapctlgo/internal/meta"
	"github.com/grable/snapctlgo/internal/pipeline/fetcher"
)

type tableRow struct {
	Dataset  string `json:"dataset"`
	Table    string `json:"table"`
	Type     string `json:"type"`
	Rows     string `json:"rows,omitempty"`
	Size     string `json:"size,omitempty"`
	Modified string `json:"modified,omitempty"`
}

// TqCommandAction is the action handler for the "tq" subcommand. It lists
// the tables the fetcher would enumerate. With --detail each table is
// described individually for row counts and sizes.
func TqCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args[1:])

	if ShortCircuitTLDR(ctx, cmd, "tq") {
		return nil
	}

	project, err := resolveProject(cmd)
	if err != nil {
		return err
	}

	svc, err := bigquery.NewService(ctx)
	if err != nil {
		return fmt.Errorf("failed to create bigquery client: %w", err)
	}
	lister := &fetcher.BigQueryLister{Project: project, Svc: svc}

	var prefixes []string
	if ds := cmd.String("dataset"); ds != "" {
		prefixes = strings.Split(ds, ",")
	}

	detail := cmd.Bool("detail")

	var rows []tableRow
	pageToken := ""
	for {
		page, err := lister.Datasets(ctx, pageToken)
		if err != nil {
			return fmt.Errorf("failed to list datasets: %w", err)
		}

		for _, ds := range page.Datasets {
			datasetID := ds.DatasetReference.DatasetId
			if !wantPrefix(datasetID, prefixes) {
				continue
			}
			dsRows, err := listTables(ctx, svc, lister, project, datasetID, detail)
			if err != nil {
				return err
			}
			rows = append(rows, dsRows...)
		}

		pageToken = page.NextPageToken
		if pageToken == "" {
			break
		}
	}

	attrs := BuildAttrs(cmd, ".dataset", ".table", ".type", ".rows", ".size", ".modified")
	return EmitRows(rows, attrs, cmd)
}

func listTables(ctx context.Context, svc *bigquery.Service, lister *fetcher.BigQueryLister,
	project, datasetID string, detail bool) ([]tableRow, error) {

	var rows []tableRow
	pageToken := ""
	for {
		page, err := lister.Tables(ctx, datasetID, pageToken)
		if err != nil {
			return nil, fmt.Errorf("failed to list tables in %s: %w", datasetID, err)
		}

		for _, t := range page.Tables {
			row := tableRow{
				Dataset: datasetID,
				Table:   t.TableReference.TableId,
				Type:    t.Type,
			}

			if detail {
				full, err := svc.Tables.Get(project, datasetID, row.Table).Context(ctx).Do()
				if err != nil {
					log.WithError(err).Warnf("failed to describe %s.%s", datasetID, row.Table)
				} else {
					row.Rows = humanize.Comma(int64(full.NumRows))
					row.Size = humanize.Bytes(uint64(full.NumBytes))
					row.Modified = time.UnixMilli(int64(full.LastModifiedTime)).UTC().Format(time.RFC3339)
				}
			}

			rows = append(rows, row)
		}

		pageToken = page.NextPageToken
		if pageToken == "" {
			break
		}
	}
	return rows, nil
}

func wantPrefix(datasetID string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if strings.HasPrefix(datasetID, strings.TrimSpace(p)) {
			return true
		}
	}
	return false
}

// resolveProject prefers the --project flag and falls back to the manifest.
func resolveProject(cmd *cli.Command) (string, error) {
	if p := cmd.String("project"); p != "" {
		return p, nil
	}
	mf, err := LoadManifest(cmd)
	if err != nil {
		return "", fmt.Errorf("no --project and no manifest: %w", err)
	}
	return mf.Project.ID, nil
}

// TqCommandBuilder constructs the cli.Command for "tq".
func TqCommandBuilder(app *cli.Command, meta meta.Meta) *cli.Command {
	return (&QueryCommandBuilder{
		Name:      "tq",
		Usage:     "table query",
		UsageText: `snapctl tq [RootDir] [options]`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "dataset",
				Usage: "comma-separated dataset prefixes to include",
			},
			&cli.BoolFlag{
				Name:        "detail",
				Aliases:     []string{"d"},
				Usage:       "describe each table for rows, size and modified",
				HideDefault: true,
			},
			NewProjectFlag("tq", meta.Config.Source),
		},
		Action: TqCommandAction,
		Meta:   meta,
	}).Build()
}
