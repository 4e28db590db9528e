// Copyright (c) 2026 Jess Grable <jgrable@hey.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/grable/snapctlgo/internal/backend"
	"github.com/grable/snapctlgo/internal/meta"
	"github.com/grable/snapctlgo/internal/plan"
)

// planRow is the output projection of one planned change.
type planRow struct {
	Resource string `json:"resource"`
	Action   string `json:"action"`
	Reason   string `json:"reason,omitempty"`
}

// PlanCommandAction diffs the manifest against recorded state and renders
// the changes. No cloud calls are made.
func PlanCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args[1:])

	if ShortCircuitTLDR(ctx, cmd, "plan") {
		return nil
	}

	mf, err := LoadManifest(cmd)
	if err != nil {
		return err
	}

	be, err := backend.NewBackend(ctx, cmd)
	if err != nil {
		return err
	}
	doc := LoadOrInitState(be, mf.Project.ID)

	p := plan.Build(mf, doc)
	for _, w := range p.Warnings {
		log.Warn(w)
	}

	rows := make([]planRow, 0, len(p.Changes))
	for _, c := range p.Changes {
		if c.Action == plan.ActionNoop && !cmd.Bool("all") {
			continue
		}
		rows = append(rows, planRow{
			Resource: c.Address,
			Action:   string(c.Action),
			Reason:   c.Reason,
		})
	}

	attrs := BuildAttrs(cmd, ".resource", ".action", ".reason")
	if err := EmitRows(rows, attrs, cmd); err != nil {
		return err
	}

	create, update, del := p.Counts()
	log.Infof("plan: %d to create, %d to update, %d to delete", create, update, del)
	return nil
}

// PlanCommandBuilder constructs the cli.Command for "plan".
func PlanCommandBuilder(app *cli.Command, meta meta.Meta) *cli.Command {
	return (&QueryCommandBuilder{
		Name:      "plan",
		Usage:     "show what apply would change",
		UsageText: `snapctl plan [RootDir] [options]`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "all",
				Usage: "include resources with no changes",
				Value: false,
			},
		},
		Action: PlanCommandAction,
		Meta:   meta,
	}).Build()
}
