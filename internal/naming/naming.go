// Copyright (c) 2026 Jess Grable <jgrable@hey.com>.
// SPDX-License-Identifier: Apache-2.0

package naming

import (
	"regexp"
	"strings"
)

var splitRe = regexp.MustCompile(`[^a-z0-9]+`)

// Redundant returns true if any component of the resource type (split by
// '_') appears in the name. Matching is case-insensitive and checks both
// substring containment and token equality when the name is split by
// non-alphanumeric chars. Names like "fetcher_account" under
// service_account restate their type and get flagged.
func Redundant(typ string, name string) bool {
	if typ == "" || name == "" {
		return false
	}

	typeLower := strings.ToLower(typ)
	nameLower := strings.ToLower(name)

	typeTokens := strings.Split(typeLower, "_")
	nameParts := splitRe.Split(nameLower, -1)

	for _, tok := range typeTokens {
		if tok == "" {
			continue
		}

		for _, p := range nameParts {
			if p == tok {
				return true
			}
		}

		if strings.Contains(nameLower, tok) {
			return true
		}
	}

	return false
}
