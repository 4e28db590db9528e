// Copyright (c) 2026 Jess Grable <jgrable@hey.com>.
// SPDX-License-Identifier: Apache-2.0

// Package plan computes the difference between a manifest and recorded
// state. It is pure: no cloud calls, so plans are cheap and safe.
package plan

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/grable/snapctlgo/internal/manifest"
	"github.com/grable/snapctlgo/internal/naming"
	"github.com/grable/snapctlgo/internal/state"
)

type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionNoop   Action = "noop"
	ActionDelete Action = "delete"
)

// Change is one planned operation on one resource address.
type Change struct {
	Address string
	Action  Action
	// Reason names the attributes that forced an update, empty otherwise.
	Reason string
}

// Plan is the ordered set of changes plus any advisory warnings.
type Plan struct {
	Changes  []Change
	Warnings []string
}

// Changed reports whether the plan contains anything beyond noops.
func (p *Plan) Changed() bool {
	for _, c := range p.Changes {
		if c.Action != ActionNoop {
			return true
		}
	}
	return false
}

// Counts returns the number of changes per action.
func (p *Plan) Counts() (create, update, del int) {
	for _, c := range p.Changes {
		switch c.Action {
		case ActionCreate:
			create++
		case ActionUpdate:
			update++
		case ActionDelete:
			del++
		}
	}
	return create, update, del
}

// Change returns the planned change for an address, or nil.
func (p *Plan) Change(addr string) *Change {
	for i := range p.Changes {
		if p.Changes[i].Address == addr {
			return &p.Changes[i]
		}
	}
	return nil
}

// Build diffs the manifest against state. Resources in the manifest but not
// in state are created; present in both with drifted attributes, updated;
// in state only, deleted.
func Build(m *manifest.Manifest, st *state.Document) *Plan {
	p := &Plan{}

	declared := map[string]bool{}
	for _, addr := range m.Addresses() {
		declared[addr] = true
		desired := DesiredAttributes(m, addr)
		rec := st.Resource(addr)
		if rec == nil {
			p.Changes = append(p.Changes, Change{Address: addr, Action: ActionCreate})
			continue
		}
		if drifted := driftedKeys(desired, rec.Attributes); len(drifted) > 0 {
			p.Changes = append(p.Changes, Change{
				Address: addr,
				Action:  ActionUpdate,
				Reason:  strings.Join(drifted, ","),
			})
			continue
		}
		p.Changes = append(p.Changes, Change{Address: addr, Action: ActionNoop})
	}

	// Deletes walk bindings first so policies stop referencing a role or
	// account before it is removed. Deleting the identity first leaves the
	// policy holding a deleted: member that no longer matches anything.
	var gone []string
	for _, r := range st.Resources {
		if !declared[r.Address()] {
			gone = append(gone, r.Address())
		}
	}
	sort.Slice(gone, func(i, j int) bool {
		ri, rj := deleteRank(gone[i]), deleteRank(gone[j])
		if ri != rj {
			return ri < rj
		}
		return gone[i] < gone[j]
	})
	for _, addr := range gone {
		p.Changes = append(p.Changes, Change{Address: addr, Action: ActionDelete})
	}

	p.Warnings = lintNames(m)

	return p
}

// DesiredAttributes renders the manifest's declared configuration for an
// address as the flat attribute map recorded in state. Multi-valued fields
// are sorted and joined so comparison is order-insensitive.
func DesiredAttributes(m *manifest.Manifest, addr string) map[string]string {
	typ, name, ok := strings.Cut(addr, ".")
	if !ok {
		return nil
	}

	switch typ {
	case "service_account":
		sa := m.ServiceAccount(name)
		if sa == nil {
			return nil
		}
		return map[string]string{
			"account_id":   sa.AccountID,
			"display_name": sa.DisplayName,
			"description":  sa.Description,
			"disabled":     strconv.FormatBool(sa.Disabled),
		}
	case "custom_role":
		cr := m.CustomRole(name)
		if cr == nil {
			return nil
		}
		return map[string]string{
			"role_id":     cr.RoleID,
			"title":       cr.Title,
			"description": cr.Description,
			"stage":       cr.Stage,
			"permissions": joinSorted(cr.Permissions),
		}
	case "binding":
		b := m.Binding(name)
		if b == nil {
			return nil
		}
		return map[string]string{
			"resource": b.Resource,
			"role":     b.Role,
			"members":  joinSorted(b.Members),
		}
	}

	return nil
}

// deleteRank orders destroys: policy bindings detach before the roles and
// accounts they point at.
func deleteRank(addr string) int {
	typ, _, _ := strings.Cut(addr, ".")
	switch typ {
	case "binding":
		return 0
	case "custom_role":
		return 1
	}
	return 2
}

// driftedKeys returns the desired keys whose recorded value differs,
// sorted. Extra recorded keys (email, unique_id) are provider facts, not
// drift.
func driftedKeys(desired, recorded map[string]string) []string {
	var keys []string
	for k, want := range desired {
		if recorded[k] != want {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func lintNames(m *manifest.Manifest) []string {
	var warnings []string
	for _, sa := range m.ServiceAccounts {
		if naming.Redundant("service_account", sa.Name) {
			warnings = append(warnings, redundantWarning("service_account", sa.Name))
		}
	}
	for _, cr := range m.CustomRoles {
		if naming.Redundant("custom_role", cr.Name) {
			warnings = append(warnings, redundantWarning("custom_role", cr.Name))
		}
	}
	for _, b := range m.Bindings {
		if naming.Redundant("binding", b.Name) {
			warnings = append(warnings, redundantWarning("binding", b.Name))
		}
	}
	return warnings
}

func redundantWarning(typ, name string) string {
	return fmt.Sprintf("%s.%s restates its type in its name", typ, name)
}

func joinSorted(values []string) string {
	sorted := append([]string(nil), values...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
