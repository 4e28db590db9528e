// Copyright © 2026 Jess Grable jgrable@hey.com
// SPDX-License-Identifier: MIT

package backend

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/grable/snapctlgo/internal/backend/gcs"
	"github.com/grable/snapctlgo/internal/backend/local"
	"github.com/grable/snapctlgo/internal/meta"
	"github.com/grable/snapctlgo/internal/state"
)

// Backend stores and retrieves state documents and their version history.
type Backend interface {
	// State returns the CSV~0 state document.
	State() ([]byte, error)
	// States returns the state documents specified by the specs.
	States(...string) ([][]byte, error)
	StateVersions() ([]*state.VersionInfo, error)
	// Push writes a new state document as the current version.
	Push([]byte) error
	String() string
	Type() (string, error)
}

// SelfDiffer is implemented by backends that can resolve --diff version
// specs themselves.
type SelfDiffer interface {
	DiffStates(ctx context.Context, cmd *cli.Command) ([][]byte, error)
}

// NewBackend inspects the root dir and returns the right backend. A
// .snapctl/backend.json file selects and configures gcs; anything else is
// the local file backend.
func NewBackend(ctx context.Context, cmd *cli.Command) (Backend, error) {
	meta := cmd.Metadata["meta"].(meta.Meta)
	log.Debugf("NewBackend: meta: %v", meta)

	typ := peek(meta)

	switch typ {
	case "gcs":
		return gcs.NewBackendGCS(ctx, cmd,
			gcs.FromRootDir(meta.RootDir),
			gcs.WithEnvOverride(meta.Env),
		)
	default:
		return local.NewBackendLocal(ctx, cmd,
			local.FromRootDir(meta.RootDir),
			local.WithEnvOverride(meta.Env),
		)
	}
}

// peek reads just the backend type out of .snapctl/backend.json. Any
// problem reading or parsing means local.
func peek(meta meta.Meta) string {
	raw, err := os.ReadFile(filepath.Join(meta.RootDir, ".snapctl", "backend.json"))
	if err != nil {
		return "local"
	}

	var peeker struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &peeker); err != nil {
		log.Debugf("can't peek backend config: %v", err)
		return "local"
	}
	log.Debugf("backend type: %s", peeker.Type)

	return peeker.Type
}
