// Copyright © 2026 Jess Grable jgrable@hey.com
// SPDX-License-Identifier: MIT

// snapctlgo is the main package for the snapctl command line tool. It wires
// the CLI, delegates to internal packages, and serves as the entry point.
package main
