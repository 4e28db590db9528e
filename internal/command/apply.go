// Copyright (c) 2026 Jess Grable <jgrable@hey.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/grable/snapctlgo/internal/apply"
	"github.com/grable/snapctlgo/internal/backend"
	"github.com/grable/snapctlgo/internal/meta"
	"github.com/grable/snapctlgo/internal/plan"
)

// ApplyCommandAction plans and then applies the manifest. Destructive plans
// require confirmation unless --auto-approve is set. State is pushed for
// whatever succeeded even when part of the apply failed.
func ApplyCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args[1:])

	if ShortCircuitTLDR(ctx, cmd, "apply") {
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
	prior := LoadOrInitState(be, mf.Project.ID)

	p := plan.Build(mf, prior)
	for _, w := range p.Warnings {
		log.Warn(w)
	}

	if !p.Changed() {
		log.Info("nothing to do")
		return nil
	}

	create, update, del := p.Counts()
	log.Infof("plan: %d to create, %d to update, %d to delete", create, update, del)

	if del > 0 && !cmd.Bool("auto-approve") {
		if !confirm(fmt.Sprintf("This will delete %d resource(s). Continue?", del)) {
			log.Info("apply cancelled")
			return nil
		}
	}

	prov, err := NewProvider(ctx, mf.Project.ID)
	if err != nil {
		return err
	}

	next, res, applyErr := apply.Run(ctx, mf, p, prov, prior,
		int(cmd.Int("parallelism")))

	// Push whatever got applied so a rerun resumes instead of repeating.
	if res.Created+res.Updated+res.Deleted > 0 {
		raw, err := next.Encode()
		if err != nil {
			return err
		}
		if err := be.Push(raw); err != nil {
			return fmt.Errorf("failed to push state: %w", err)
		}
	}

	log.Infof("apply: %d created, %d updated, %d deleted, %d skipped",
		res.Created, res.Updated, res.Deleted, len(res.Skipped))
	for _, addr := range res.Skipped {
		log.Warnf("skipped %s", addr)
	}

	return applyErr
}

func confirm(prompt string) bool {
	fmt.Fprintf(os.Stderr, "%s Only 'yes' continues: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	return strings.TrimSpace(line) == "yes"
}

// ApplyCommandBuilder constructs the cli.Command for "apply".
func ApplyCommandBuilder(app *cli.Command, meta meta.Meta) *cli.Command {
	return (&QueryCommandBuilder{
		Name:      "apply",
		Usage:     "apply the manifest to the project",
		UsageText: `snapctl apply [RootDir] [options]`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "auto-approve",
				Usage:       "skip confirmation of destructive actions",
				HideDefault: true,
			},
			&cli.IntFlag{
				Name:  "parallelism",
				Usage: "bound concurrent provider calls",
				Value: apply.DefaultParallelism,
			},
		},
		Action: ApplyCommandAction,
		Meta:   meta,
	}).Build()
}
