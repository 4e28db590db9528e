// Copyright (c) 2026 Jess Grable <jgrable@hey.com>.
// SPDX-License-Identifier: Apache-2.0

package util

import (
	"fmt"
	"os"
	"strings"
)

// ParseRootDir parses a RootDir argument of the form "dir" or "dir::env".
// The env segment selects a workspace-style environment override. The dir
// must exist and be a directory.
func ParseRootDir(spec string) (string, string, error) {
	dir := spec
	env := ""

	if idx := strings.Index(spec, "::"); idx >= 0 {
		dir = spec[:idx]
		env = spec[idx+2:]
	}

	info, err := os.Stat(dir)
	if err != nil {
		return "", "", fmt.Errorf("failed to stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return "", "", fmt.Errorf("%s is not a directory", dir)
	}

	return dir, env, nil
}
