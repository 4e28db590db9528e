// Copyright (c) 2026 Jess Grable <jgrable@hey.com>.
// SPDX-License-Identifier: Apache-2.0

package sv

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/grable/snapctlgo/internal/state"
)

// Finder resolves state-version specs against a newest-first version list.
// A spec can be -
//
//	empty  - the CSV (current state version).
//	CSV~N  - the version N back from current.
//	id     - a version ID, or unique ID prefix.
//	serial - a specific serial number.
//	file   - a local state file to read directly.
func Finder(versions []*state.VersionInfo, specs ...string) ([]*state.VersionInfo, error) {
	var result = []*state.VersionInfo{}

	if len(specs) == 0 {
		specs = []string{"CSV~0"}
	}

	var index int
	for _, s := range specs {

		if strings.HasPrefix(strings.ToUpper(s), "CSV~") {
			parts := strings.Split(s, "~")
			index, _ = strconv.Atoi(parts[1])
		} else if i, err := strconv.Atoi(s); err == nil {
			if i <= 0 {
				// <= 0 means it's a relative index into the version list
				index = -i
			} else {
				// Otherwise it's a state serial number that we have to go find.
				found := false
				for j, v := range versions {
					if v.Serial == int64(i) {
						index = j
						found = true
						break
					}
				}
				if !found {
					return nil, fmt.Errorf("failed to find state version with serial %d", i)
				}
			}
		} else if _, err := os.Stat(s); err == nil && !os.IsNotExist(err) {
			v := state.VersionInfo{
				ID:     s,
				Serial: 0,
				Source: s,
			}
			result = append(result, &v)
			continue

		} else {
			// It's an ID, go find it. This is a starts-with search. A full ID
			// behaves like equals; a partial ID returns the first (ie. newest)
			// match.
			matched := false
			for j, v := range versions {
				if strings.HasPrefix(v.ID, s) {
					index = j
					matched = true
					break
				}
			}
			if !matched {
				return nil, fmt.Errorf("failed to find state version matching %q", s)
			}
		}

		if index > len(versions)-1 {
			return nil, fmt.Errorf("index %d out of range for versions of length %d", index, len(versions))
		}

		result = append(result, versions[index])
	}

	return result, nil
}
