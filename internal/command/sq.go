// Copyright (c) 2026 Jess Grable <jgrable@hey.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"bytes"
	"context"
	"os"

	"github.com/apex/log"
	altsrc "github.com/urfave/cli-altsrc/v3"
	yaml "github.com/urfave/cli-altsrc/v3/yaml"
	"github.com/urfave/cli/v3"

	"github.com/grable/snapctlgo/internal/backend"
	"github.com/grable/snapctlgo/internal/config"
	"github.com/grable/snapctlgo/internal/differ"
	"github.com/grable/snapctlgo/internal/meta"
	"github.com/grable/snapctlgo/internal/output"
)

// SqCommandAction is the action handler for the "sq" subcommand. It reads
// the recorded state, supports --tldr and --diff short-circuits, and emits
// results per common flags.
func SqCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args[1:])

	if ShortCircuitTLDR(ctx, cmd, "sq") {
		return nil
	}

	config.Config.Namespace = "sq"

	be, err := backend.NewBackend(ctx, cmd)
	if err != nil {
		return err
	}
	log.Debugf("be: %v", be)

	// Short circuit --diff mode.
	if cmd.Bool("diff") {
		if sd, ok := be.(backend.SelfDiffer); ok {
			states, diffErr := sd.DiffStates(ctx, cmd)
			if diffErr != nil {
				log.Errorf("diff error: %v", diffErr)
				return diffErr
			}
			return differ.Diff(ctx, cmd, states)
		}
		log.Debug("Backend does not implement SelfDiffer")
	}

	attrs := BuildAttrs(cmd, ".resource", "!.type", "!.name", ".id")
	log.Debugf("attrs: %v", attrs)

	docs, err := be.States(cmd.String("sv"))
	if err != nil {
		return err
	}

	var raw bytes.Buffer
	raw.Write(docs[0])

	output.SliceDiceSpit(raw, attrs, cmd, "", os.Stdout)

	return nil
}

// SqCommandBuilder constructs the cli.Command for "sq", wiring metadata,
// flags, and action/validator handlers.
func SqCommandBuilder(app *cli.Command, meta meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "sq",
		Usage:     "state query",
		UsageText: `snapctl sq [RootDir] [options]`,
		Metadata: map[string]any{
			"meta": meta,
		},
		Flags: append([]cli.Flag{
			&cli.BoolFlag{
				Name:  "diff",
				Usage: "find difference between state versions",
				Value: false,
			},
			&cli.StringFlag{
				Name:   "diff_filter",
				Hidden: true,
				Sources: cli.NewValueSourceChain(
					yaml.YAML("sq.diff_filter", altsrc.StringSourcer(meta.Config.Source)),
				),
				Value: "lineage",
			},
			&cli.IntFlag{
				Name:   "limit",
				Hidden: true,
				Usage:  "limit state versions returned",
				Sources: cli.NewValueSourceChain(
					yaml.YAML("sq.limit", altsrc.StringSourcer(cfg.Source)),
					yaml.YAML("limit", altsrc.StringSourcer(cfg.Source)),
				),
				Value: 99999,
			},
			&cli.StringFlag{
				Name:        "sv",
				Usage:       "state version to query",
				Value:       "0",
				HideDefault: true,
			},
			tldrFlag,
		}, NewGlobalFlags("sq")...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := SqCommandValidator(ctx, cmd); err != nil {
				return err
			}
			return SqCommandAction(ctx, cmd)
		},
	}
}

// SqCommandValidator performs validation for "sq" and delegates to
// GlobalFlagsValidator.
func SqCommandValidator(ctx context.Context, cmd *cli.Command) error {
	return GlobalFlagsValidator(ctx, cmd)
}
