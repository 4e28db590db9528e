// Copyright © 2026 Jess Grable jgrable@hey.com
// SPDX-License-Identifier: MIT

// Package graph provides the dependency graph that orders resource
// application. Edges come from manifest reference expressions; the walker
// runs independent resources concurrently and skips the dependents of
// anything that fails.
package graph
