// Copyright © 2026 Jess Grable jgrable@hey.com
// SPDX-License-Identifier: MIT

// Package state defines the on-disk state document recording applied IAM
// resources and resolved outputs, and the version metadata backends hand
// back when enumerating stored state versions.
package state
