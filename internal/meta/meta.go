// Copyright © 2026 Jess Grable jgrable@hey.com
// SPDX-License-Identifier: MIT

package meta

import (
	"context"

	"github.com/grable/snapctlgo/internal/config"
)

type RootDirSpec struct {
	RootDir string
	Env     string
}

// Meta are the meta-options that are available on all or most commands.
type Meta struct {
	Args    []string
	Config  config.Type
	Context context.Context
	RootDirSpec
	StartingDir string
}
