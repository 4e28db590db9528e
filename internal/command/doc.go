// Copyright © 2026 Jess Grable jgrable@hey.com
// SPDX-License-Identifier: MIT

// Package command defines the CLI command set for snapctl. It wires flags,
// validators and actions for subcommands.
package command
