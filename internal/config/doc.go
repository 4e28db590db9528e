// Copyright © 2026 Jess Grable jgrable@hey.com
// SPDX-License-Identifier: MIT

// Package config loads snapctl.yaml and exposes dotted-path getters with an
// optional per-command namespace.
package config
