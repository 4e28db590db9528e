// Copyright (c) 2026 Jess Grable <jgrable@hey.com>.
// SPDX-License-Identifier: MIT

// Package driller traverses JSON documents to extract values for the query
// commands, with friendlier array semantics than a raw path lookup.
package driller

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

var indexRe = regexp.MustCompile(`\[(\d+)\]`)

// Driller resolves path against the JSON document. Paths are dotted keys
// with optional [n] array indexes. A single-element array is drilled
// through transparently, both mid-path and at the end, so callers don't
// need to know whether a field was recorded as a scalar or a one-item list.
func Driller(json string, path string) gjson.Result {
	norm := indexRe.ReplaceAllString(path, ".$1")

	current := gjson.Parse(json)
	for _, seg := range strings.Split(norm, ".") {
		if seg == "" {
			continue
		}

		if current.IsArray() {
			if _, err := strconv.Atoi(seg); err != nil {
				arr := current.Array()
				if len(arr) != 1 {
					return gjson.Result{}
				}
				current = arr[0]
			}
		}

		current = current.Get(seg)
		if !current.Exists() {
			return current
		}
	}

	if current.IsArray() {
		if arr := current.Array(); len(arr) == 1 {
			return arr[0]
		}
	}

	return current
}
