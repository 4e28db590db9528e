// Copyright (c) 2026 Jess Grable <jgrable@hey.com>.
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// FormatVersion is the document format written by this build. Older
// documents with a lower version are still read.
const FormatVersion = 1

// Document is the recorded state of every resource snapctl has applied,
// plus the resolved outputs. Serial increments on every successful apply;
// lineage is fixed when the state is first created.
type Document struct {
	Version   int                 `json:"version"`
	Serial    int64               `json:"serial"`
	Lineage   string              `json:"lineage"`
	Project   string              `json:"project"`
	Resources []Resource          `json:"resources"`
	Outputs   map[string]string   `json:"outputs"`
}

// Resource is one applied resource. ID is the cloud-side identifier: the
// service-account email, the full custom-role name, or the binding's
// resource/role key.
type Resource struct {
	Type       string            `json:"type"`
	Name       string            `json:"name"`
	ID         string            `json:"id"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Address returns the manifest address for the resource.
func (r Resource) Address() string {
	return r.Type + "." + r.Name
}

// VersionInfo describes one stored state version in a backend, newest first.
type VersionInfo struct {
	ID        string
	Serial    int64
	CreatedAt time.Time
	Source    string
}

// New returns an empty state document with a fresh lineage.
func New(project string) *Document {
	return &Document{
		Version: FormatVersion,
		Serial:  0,
		Lineage: uuid.NewString(),
		Project: project,
		Outputs: map[string]string{},
	}
}

// Decode parses a state document. Unknown fields are tolerated so newer
// documents degrade instead of failing.
func Decode(raw []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode state: %w", err)
	}
	if doc.Version > FormatVersion {
		return nil, fmt.Errorf("state format version %d is newer than supported %d", doc.Version, FormatVersion)
	}
	if doc.Outputs == nil {
		doc.Outputs = map[string]string{}
	}
	return &doc, nil
}

// Encode renders the document deterministically: resources sorted by
// address so that state diffs stay meaningful.
func (d *Document) Encode() ([]byte, error) {
	sort.Slice(d.Resources, func(i, j int) bool {
		return d.Resources[i].Address() < d.Resources[j].Address()
	})
	raw, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode state: %w", err)
	}
	return append(raw, '\n'), nil
}

// Resource returns the recorded resource at the given address, or nil.
func (d *Document) Resource(addr string) *Resource {
	for i := range d.Resources {
		if d.Resources[i].Address() == addr {
			return &d.Resources[i]
		}
	}
	return nil
}

// Upsert records (or replaces) a resource.
func (d *Document) Upsert(r Resource) {
	for i := range d.Resources {
		if d.Resources[i].Address() == r.Address() {
			d.Resources[i] = r
			return
		}
	}
	d.Resources = append(d.Resources, r)
}

// Remove drops the resource at the given address if present.
func (d *Document) Remove(addr string) {
	for i := range d.Resources {
		if d.Resources[i].Address() == addr {
			d.Resources = append(d.Resources[:i], d.Resources[i+1:]...)
			return
		}
	}
}
