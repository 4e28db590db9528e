// Copyright (c) 2026 Jess Grable jgrable@hey.com.
// SPDX-License-Identifier: Apache-2.0

// Package backend implements state storage integrations (local file and
// versioned GCS object) and exposes common behaviors for reading, writing
// and enumerating state versions.
package backend
