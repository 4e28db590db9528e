// Copyright © 2026 Jess Grable jgrable@hey.com
// SPDX-License-Identifier: MIT

package gcs

import (
	"github.com/grable/snapctlgo/internal/cacheutil"
	"github.com/grable/snapctlgo/internal/config"
)

// cacheKey builds a stable clear-text key for one generation of the state
// object. Generations are immutable so cached entries never go stale.
func cacheKey(be *BackendGCS, genID string) string {
	return be.Backend.Config.Bucket + "/" + be.objectKey() + "#" + genID
}

func cacheReader(be *BackendGCS, genID string) ([]byte, bool) {
	entry, ok := cacheutil.Read([]string{"gcs"}, cacheKey(be, genID))
	if !ok {
		return nil, false
	}
	return entry.Data, true
}

func cacheWriter(be *BackendGCS, genID string, data []byte) error {
	// Age-based purge keeps the cache from growing without bound.
	hours, _ := config.GetInt("cache.purge_hours", 0)
	_ = cacheutil.Purge(hours)

	return cacheutil.Write([]string{"gcs"}, cacheKey(be, genID), data)
}
