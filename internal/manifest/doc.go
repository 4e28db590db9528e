// Copyright © 2026 Jess Grable jgrable@hey.com
// SPDX-License-Identifier: MIT

// Package manifest parses the declarative HCL description of the snapshot
// pipeline's IAM surface: service accounts, custom roles, role bindings and
// outputs. Reference expressions between blocks resolve at load time; the
// extracted reference addresses drive apply ordering.
package manifest
