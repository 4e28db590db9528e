// Copyright © 2026 Jess Grable jgrable@hey.com
// SPDX-License-Identifier: MIT

// Package provider abstracts the cloud-side application of manifest
// resources. The gcp subpackage talks to the live Google APIs; the fake
// subpackage backs tests and plan-only flows.
package provider
