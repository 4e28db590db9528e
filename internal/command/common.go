// Copyright (c) 2026 Jess Grable <jgrable@hey.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/grable/snapctlgo/internal/attrs"
	"github.com/grable/snapctlgo/internal/backend"
	"github.com/grable/snapctlgo/internal/manifest"
	"github.com/grable/snapctlgo/internal/meta"
	"github.com/grable/snapctlgo/internal/output"
	"github.com/grable/snapctlgo/internal/provider"
	"github.com/grable/snapctlgo/internal/provider/gcp"
	"github.com/grable/snapctlgo/internal/state"
)

// NewProvider builds the provider used by apply. Swappable so tests can
// inject a fake.
var NewProvider = func(ctx context.Context, project string) (provider.Provider, error) {
	return gcp.New(ctx, project)
}

// ShortCircuitTLDR checks the --tldr flag and, if present and available,
// runs `tldr snapctl <subcmd>` and returns true so the caller can exit
// early.
func ShortCircuitTLDR(ctx context.Context, cmd *cli.Command, subcmd string) bool {
	if cmd.Bool("tldr") {
		if _, err := exec.LookPath("tldr"); err == nil {
			c := exec.CommandContext(ctx, "tldr", "snapctl", subcmd)
			c.Stdout = os.Stdout
			c.Stderr = os.Stderr
			_ = c.Run()
		}
		return true
	}
	return false
}

// BuildAttrs constructs an AttrList with defaults and optional extras from
// --attrs, then applies the global transform spec.
func BuildAttrs(cmd *cli.Command, defaults ...string) (al attrs.AttrList) {
	//nolint:errcheck
	{
		for _, d := range defaults {
			al.Set(d)
		}
		if extras := cmd.String("attrs"); extras != "" {
			al.Set(extras)
		}
		al.SetGlobalTransformSpec()
	}
	return
}

// EmitRows marshals a slice of rows and passes it to the common output
// routine.
func EmitRows(rows any, al attrs.AttrList, cmd *cli.Command) error {
	jsonBytes, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("failed to marshal rows: %w", err)
	}
	var raw bytes.Buffer
	raw.Write(jsonBytes)
	output.SliceDiceSpit(raw, al, cmd, "", os.Stdout)
	return nil
}

// GetMeta returns the meta.Meta stored in the command's Metadata. If missing
// or of an unexpected type, it returns the zero value.
func GetMeta(cmd *cli.Command) meta.Meta {
	if cmd == nil || cmd.Metadata == nil {
		return meta.Meta{}
	}
	if m, ok := cmd.Metadata["meta"].(meta.Meta); ok {
		return m
	}
	return meta.Meta{}
}

// LoadManifest parses the manifest files under the command's root dir.
func LoadManifest(cmd *cli.Command) (*manifest.Manifest, error) {
	m := GetMeta(cmd)
	return manifest.Load(m.RootDir)
}

// LoadOrInitState returns the backend's current state document, or a fresh
// one when the backend has none yet.
func LoadOrInitState(be backend.Backend, project string) *state.Document {
	raw, err := be.State()
	if err != nil {
		log.Debugf("no prior state (%v), starting fresh", err)
		return state.New(project)
	}
	doc, err := state.Decode(raw)
	if err != nil {
		log.WithError(err).Warn("could not decode prior state, starting fresh")
		return state.New(project)
	}
	return doc
}

// QueryCommandBuilder constructs a cli.Command for query subcommands using
// a consistent pattern: metadata wiring, tldr flag, global flags and the
// shared validator.
type QueryCommandBuilder struct {
	Name      string
	Usage     string
	UsageText string
	Flags     []cli.Flag
	Action    func(context.Context, *cli.Command) error
	Meta      meta.Meta
}

// Build returns a configured cli.Command from the builder.
func (qcb *QueryCommandBuilder) Build() *cli.Command {
	return &cli.Command{
		Name:      qcb.Name,
		Usage:     qcb.Usage,
		UsageText: qcb.UsageText,
		Metadata: map[string]any{
			"meta": qcb.Meta,
		},
		Flags: append(qcb.Flags, append([]cli.Flag{
			tldrFlag,
		}, NewGlobalFlags(qcb.Name)...)...),
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			return ctx, GlobalFlagsValidator(ctx, c)
		},
		Action: qcb.Action,
	}
}
