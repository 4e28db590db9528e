// Copyright © 2026 Jess Grable jgrable@hey.com
// SPDX-License-Identifier: MIT

package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/grable/snapctlgo/internal/differ"
	"github.com/grable/snapctlgo/internal/state"
	"github.com/grable/snapctlgo/internal/sv"
)

const stateFile = "snapctl.state.json"

// BackendLocal keeps state in a JSON file in the root dir. Every Push moves
// the previous document aside as a serial-stamped backup, and the backups
// are the version history.
type BackendLocal struct {
	Ctx         context.Context
	Cmd         *cli.Command
	RootDir     string `json:"-" validate:"dir"`
	EnvOverride string
}

type Option func(*BackendLocal)

func FromRootDir(rootDir string) Option {
	return func(be *BackendLocal) {
		be.RootDir = rootDir
	}
}

func WithEnvOverride(env string) Option {
	return func(be *BackendLocal) {
		be.EnvOverride = env
	}
}

func NewBackendLocal(ctx context.Context, cmd *cli.Command, options ...Option) (*BackendLocal, error) {
	be := &BackendLocal{
		Ctx: ctx,
		Cmd: cmd,
	}
	for _, option := range options {
		option(be)
	}
	if be.RootDir == "" {
		be.RootDir = "."
	}
	return be, nil
}

// statePath returns the live state file path, honoring the env override
// (rootDir::env selects snapctl.<env>.state.json).
func (be *BackendLocal) statePath() string {
	name := stateFile
	if be.EnvOverride != "" {
		name = fmt.Sprintf("snapctl.%s.state.json", be.EnvOverride)
	}
	return filepath.Join(be.RootDir, name)
}

func (be *BackendLocal) backupPath(serial int64) string {
	return be.statePath() + fmt.Sprintf(".%d.backup", serial)
}

func (be *BackendLocal) State() ([]byte, error) {
	spec := "CSV~0"
	if be.Cmd != nil {
		if s := be.Cmd.String("sv"); s != "" && s != "0" {
			spec = s
		}
	}
	states, err := be.States(spec)
	if err != nil {
		return nil, err
	}
	return states[0], nil
}

func (be *BackendLocal) States(specs ...string) ([][]byte, error) {
	candidates, err := be.StateVersions()
	if err != nil {
		return nil, err
	}

	versions, err := sv.Finder(candidates, specs...)
	if err != nil {
		return nil, err
	}
	log.Debugf("versions: %v", versions)

	var results [][]byte
	for _, v := range versions {
		body, err := os.ReadFile(v.Source)
		if err != nil {
			return nil, fmt.Errorf("failed to read state %s: %w", v.Source, err)
		}
		results = append(results, body)
	}

	return results, nil
}

// StateVersions enumerates the live file and its backups, newest first.
func (be *BackendLocal) StateVersions() ([]*state.VersionInfo, error) {
	var versions []*state.VersionInfo

	add := func(path string) {
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return
		}
		doc, err := state.Decode(raw)
		if err != nil {
			log.Debugf("skipping unparseable state %s: %v", path, err)
			return
		}
		versions = append(versions, &state.VersionInfo{
			ID:        filepath.Base(path),
			Serial:    doc.Serial,
			CreatedAt: info.ModTime(),
			Source:    path,
		})
	}

	add(be.statePath())

	matches, err := filepath.Glob(be.statePath() + ".*.backup")
	if err != nil {
		return nil, err
	}
	for _, m := range matches {
		add(m)
	}

	sort.Slice(versions, func(i, j int) bool {
		return versions[i].Serial > versions[j].Serial
	})

	if be.Cmd != nil {
		if limit := int(be.Cmd.Int("limit")); limit > 0 && len(versions) > limit {
			versions = versions[:limit]
		}
	}

	return versions, nil
}

// Push writes doc as the current state. The previous current version is
// kept as a backup named by its serial.
func (be *BackendLocal) Push(doc []byte) error {
	path := be.statePath()

	if prev, err := os.ReadFile(path); err == nil {
		if prevDoc, err := state.Decode(prev); err == nil {
			if err := os.WriteFile(be.backupPath(prevDoc.Serial), prev, 0o644); err != nil { //nolint:mnd
				return fmt.Errorf("failed to write state backup: %w", err)
			}
		}
	}

	if err := os.WriteFile(path, doc, 0o644); err != nil { //nolint:mnd
		return fmt.Errorf("failed to write state: %w", err)
	}
	return nil
}

// DiffStates implements backend.SelfDiffer.
func (be *BackendLocal) DiffStates(ctx context.Context, cmd *cli.Command) ([][]byte, error) {
	svSpecs := []string{"CSV~1", "CSV~0"}

	diffArgs := differ.ParseDiffArgs(ctx, cmd)
	switch len(diffArgs) {
	case 0:
		// No args, so diff the last two states.
	case 1:
		svSpecs[0] = diffArgs[0]
	case 2:
		svSpecs = diffArgs
	}

	return be.States(svSpecs[0], svSpecs[1])
}

func (be *BackendLocal) String() string {
	var sb strings.Builder
	sb.WriteString("local ")
	sb.WriteString(be.statePath())
	return sb.String()
}

func (be *BackendLocal) Type() (string, error) {
	return "local", nil
}
