// Copyright (c) 2026 Jess Grable <jgrable@hey.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"sort"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/grable/snapctlgo/internal/backend"
	"github.com/grable/snapctlgo/internal/meta"
	"github.com/grable/snapctlgo/internal/state"
)

type outputRow struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// OqCommandAction is the action handler for the "oq" subcommand. It lists
// the resolved outputs recorded in state, typically the pipeline
// service-account emails that downstream layers consume.
func OqCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args[1:])

	if ShortCircuitTLDR(ctx, cmd, "oq") {
		return nil
	}

	be, err := backend.NewBackend(ctx, cmd)
	if err != nil {
		return err
	}

	raw, err := be.State()
	if err != nil {
		return err
	}
	doc, err := state.Decode(raw)
	if err != nil {
		return err
	}

	rows := make([]outputRow, 0, len(doc.Outputs))
	for name, value := range doc.Outputs {
		rows = append(rows, outputRow{Name: name, Value: value})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })

	attrs := BuildAttrs(cmd, ".name", ".value")
	return EmitRows(rows, attrs, cmd)
}

// OqCommandBuilder constructs the cli.Command for "oq".
func OqCommandBuilder(app *cli.Command, meta meta.Meta) *cli.Command {
	return (&QueryCommandBuilder{
		Name:      "oq",
		Usage:     "output query",
		UsageText: `snapctl oq [RootDir] [options]`,
		Action:    OqCommandAction,
		Meta:      meta,
	}).Build()
}
