// Copyright (c) 2026 Jess Grable <jgrable@hey.com>.
// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Manifest is the fully resolved declarative model for one pipeline: the
// project it lives in, the identities and custom roles to provision, the IAM
// bindings tying them together, and the outputs other layers consume.
type Manifest struct {
	Project         Project
	ServiceAccounts []*ServiceAccount
	CustomRoles     []*CustomRole
	Bindings        []*Binding
	Outputs         []*Output
}

// Project carries the target project and pipeline-wide settings.
type Project struct {
	ID       string
	Topic    string
	Location string
}

// ServiceAccount declares a non-human identity.
type ServiceAccount struct {
	Name        string
	AccountID   string
	DisplayName string
	Description string
	Disabled    bool
}

// Email returns the deterministic service-account email for the project.
func (sa *ServiceAccount) Email(projectID string) string {
	return fmt.Sprintf("%s@%s.iam.gserviceaccount.com", sa.AccountID, projectID)
}

// Member returns the IAM member string for the account.
func (sa *ServiceAccount) Member(projectID string) string {
	return "serviceAccount:" + sa.Email(projectID)
}

// CustomRole declares a project-level custom role.
type CustomRole struct {
	Name        string
	RoleID      string
	Title       string
	Description string
	Stage       string
	Permissions []string
}

// FullName returns the projects/<p>/roles/<id> form used by the IAM API.
func (cr *CustomRole) FullName(projectID string) string {
	return fmt.Sprintf("projects/%s/roles/%s", projectID, cr.RoleID)
}

// Binding grants one role to a set of members on a resource. Resource specs
// are "project", "dataset/<id>" or "topic/<id>".
type Binding struct {
	Name     string
	Resource string
	Role     string
	Members  []string

	// Refs are the resource addresses this binding's expressions traverse.
	// They drive apply ordering, nothing else.
	Refs []string
}

// Output publishes a resolved value (typically a service-account email) for
// consumption by other infrastructure layers.
type Output struct {
	Name  string
	Value string
	Refs  []string
}

var accountIDRe = regexp.MustCompile(`^[a-z]([a-z0-9-]{4,28})[a-z0-9]$`)
var roleIDRe = regexp.MustCompile(`^[a-zA-Z0-9_.]{3,64}$`)

// Validate checks manifest-level invariants that the HCL decode can't: name
// uniqueness, id syntax, resource spec syntax and role form.
func (m *Manifest) Validate() error {
	if m.Project.ID == "" {
		return fmt.Errorf("manifest has no project block")
	}

	seen := map[string]bool{}
	for _, sa := range m.ServiceAccounts {
		addr := "service_account." + sa.Name
		if seen[addr] {
			return fmt.Errorf("duplicate %s", addr)
		}
		seen[addr] = true
		if !accountIDRe.MatchString(sa.AccountID) {
			return fmt.Errorf("%s: invalid account_id %q", addr, sa.AccountID)
		}
	}

	for _, cr := range m.CustomRoles {
		addr := "custom_role." + cr.Name
		if seen[addr] {
			return fmt.Errorf("duplicate %s", addr)
		}
		seen[addr] = true
		if !roleIDRe.MatchString(cr.RoleID) {
			return fmt.Errorf("%s: invalid role_id %q", addr, cr.RoleID)
		}
		if len(cr.Permissions) == 0 {
			return fmt.Errorf("%s: permissions must not be empty", addr)
		}
	}

	for _, b := range m.Bindings {
		addr := "binding." + b.Name
		if seen[addr] {
			return fmt.Errorf("duplicate %s", addr)
		}
		seen[addr] = true
		if err := validateResourceSpec(b.Resource); err != nil {
			return fmt.Errorf("%s: %w", addr, err)
		}
		if !strings.HasPrefix(b.Role, "roles/") && !strings.HasPrefix(b.Role, "projects/") {
			return fmt.Errorf("%s: role %q is neither predefined nor custom", addr, b.Role)
		}
		if len(b.Members) == 0 {
			return fmt.Errorf("%s: members must not be empty", addr)
		}
	}

	for _, o := range m.Outputs {
		addr := "output." + o.Name
		if seen[addr] {
			return fmt.Errorf("duplicate %s", addr)
		}
		seen[addr] = true
	}

	return nil
}

// Addresses returns the provisionable resource addresses in a stable order.
// Outputs are not provisionable and are excluded.
func (m *Manifest) Addresses() []string {
	var addrs []string
	for _, sa := range m.ServiceAccounts {
		addrs = append(addrs, "service_account."+sa.Name)
	}
	for _, cr := range m.CustomRoles {
		addrs = append(addrs, "custom_role."+cr.Name)
	}
	for _, b := range m.Bindings {
		addrs = append(addrs, "binding."+b.Name)
	}
	sort.Strings(addrs)
	return addrs
}

// ServiceAccount returns the declared account with the given name, or nil.
func (m *Manifest) ServiceAccount(name string) *ServiceAccount {
	for _, sa := range m.ServiceAccounts {
		if sa.Name == name {
			return sa
		}
	}
	return nil
}

// CustomRole returns the declared role with the given name, or nil.
func (m *Manifest) CustomRole(name string) *CustomRole {
	for _, cr := range m.CustomRoles {
		if cr.Name == name {
			return cr
		}
	}
	return nil
}

// Binding returns the declared binding with the given name, or nil.
func (m *Manifest) Binding(name string) *Binding {
	for _, b := range m.Bindings {
		if b.Name == name {
			return b
		}
	}
	return nil
}

func validateResourceSpec(spec string) error {
	if spec == "project" {
		return nil
	}
	parts := strings.SplitN(spec, "/", 2)
	if len(parts) == 2 && parts[1] != "" {
		switch parts[0] {
		case "dataset", "topic", "subscription":
			return nil
		}
	}
	return fmt.Errorf("invalid resource spec %q", spec)
}
