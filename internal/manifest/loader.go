// Copyright (c) 2026 Jess Grable <jgrable@hey.com>.
// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/apex/log"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

// fileRoot decodes all top-level blocks from any manifest file.
type fileRoot struct {
	Projects        []*projectBlock        `hcl:"project,block"`
	ServiceAccounts []*serviceAccountBlock `hcl:"service_account,block"`
	CustomRoles     []*customRoleBlock     `hcl:"custom_role,block"`
	Bindings        []*bindingBlock        `hcl:"binding,block"`
	Outputs         []*outputBlock         `hcl:"output,block"`
}

type projectBlock struct {
	ID       string `hcl:"id,label"`
	Topic    string `hcl:"topic,optional"`
	Location string `hcl:"location,optional"`
}

type serviceAccountBlock struct {
	Name        string `hcl:"name,label"`
	AccountID   string `hcl:"account_id"`
	DisplayName string `hcl:"display_name,optional"`
	Description string `hcl:"description,optional"`
	Disabled    bool   `hcl:"disabled,optional"`
}

type customRoleBlock struct {
	Name        string   `hcl:"name,label"`
	RoleID      string   `hcl:"role_id"`
	Title       string   `hcl:"title,optional"`
	Description string   `hcl:"description,optional"`
	Stage       string   `hcl:"stage,optional"`
	Permissions []string `hcl:"permissions"`
}

type bindingBlock struct {
	Name     string         `hcl:"name,label"`
	Resource string         `hcl:"resource"`
	Role     hcl.Expression `hcl:"role"`
	Members  hcl.Expression `hcl:"members"`
}

type outputBlock struct {
	Name  string         `hcl:"name,label"`
	Value hcl.Expression `hcl:"value"`
}

// Load parses every .hcl file under the given paths into a single resolved
// Manifest. Reference expressions (service_account.fetcher.email and
// friends) are evaluated against the manifest's own declarations, so the
// returned model carries only concrete strings plus the reference addresses
// needed for ordering.
func Load(paths ...string) (*Manifest, error) {
	files, err := findManifestFiles(paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .hcl manifest files found under %v", paths)
	}
	log.Debugf("manifest files: %v", files)

	parser := hclparse.NewParser()
	var roots []fileRoot

	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse %s: %s", file, diags.Error())
		}

		var root fileRoot
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode %s: %s", file, diags.Error())
		}
		roots = append(roots, root)
	}

	m := &Manifest{}
	for _, root := range roots {
		for _, p := range root.Projects {
			if m.Project.ID != "" {
				return nil, fmt.Errorf("more than one project block (%s and %s)", m.Project.ID, p.ID)
			}
			m.Project = Project{ID: p.ID, Topic: p.Topic, Location: p.Location}
		}
		for _, sa := range root.ServiceAccounts {
			m.ServiceAccounts = append(m.ServiceAccounts, &ServiceAccount{
				Name:        sa.Name,
				AccountID:   sa.AccountID,
				DisplayName: sa.DisplayName,
				Description: sa.Description,
				Disabled:    sa.Disabled,
			})
		}
		for _, cr := range root.CustomRoles {
			stage := cr.Stage
			if stage == "" {
				stage = "GA"
			}
			m.CustomRoles = append(m.CustomRoles, &CustomRole{
				Name:        cr.Name,
				RoleID:      cr.RoleID,
				Title:       cr.Title,
				Description: cr.Description,
				Stage:       stage,
				Permissions: append([]string(nil), cr.Permissions...),
			})
		}
	}

	// Bindings and outputs evaluate against the declared accounts and roles,
	// so they resolve in a second pass.
	scope := m.evalContext()

	for _, root := range roots {
		for _, b := range root.Bindings {
			binding, err := resolveBinding(b, scope)
			if err != nil {
				return nil, err
			}
			m.Bindings = append(m.Bindings, binding)
		}
		for _, o := range root.Outputs {
			refs, err := referencedAddresses(o.Value, m)
			if err != nil {
				return nil, fmt.Errorf("output.%s: %w", o.Name, err)
			}
			val, diags := o.Value.Value(scope)
			if diags.HasErrors() {
				return nil, fmt.Errorf("output.%s: %s", o.Name, diags.Error())
			}
			if val.Type() != cty.String {
				return nil, fmt.Errorf("output.%s: value must be a string", o.Name)
			}
			m.Outputs = append(m.Outputs, &Output{Name: o.Name, Value: val.AsString(), Refs: refs})
		}
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return m, nil
}

// evalContext builds the expression scope from the manifest's own
// declarations. Service-account emails are deterministic, so bindings and
// outputs can resolve before anything is applied.
func (m *Manifest) evalContext() *hcl.EvalContext {
	saVals := map[string]cty.Value{}
	for _, sa := range m.ServiceAccounts {
		saVals[sa.Name] = cty.ObjectVal(map[string]cty.Value{
			"account_id": cty.StringVal(sa.AccountID),
			"email":      cty.StringVal(sa.Email(m.Project.ID)),
			"member":     cty.StringVal(sa.Member(m.Project.ID)),
		})
	}

	crVals := map[string]cty.Value{}
	for _, cr := range m.CustomRoles {
		crVals[cr.Name] = cty.ObjectVal(map[string]cty.Value{
			"role_id": cty.StringVal(cr.RoleID),
			"name":    cty.StringVal(cr.FullName(m.Project.ID)),
		})
	}

	vars := map[string]cty.Value{
		"project": cty.ObjectVal(map[string]cty.Value{
			"id":    cty.StringVal(m.Project.ID),
			"topic": cty.StringVal(m.Project.Topic),
		}),
	}
	if len(saVals) > 0 {
		vars["service_account"] = cty.ObjectVal(saVals)
	}
	if len(crVals) > 0 {
		vars["custom_role"] = cty.ObjectVal(crVals)
	}

	return &hcl.EvalContext{Variables: vars}
}

func resolveBinding(b *bindingBlock, scope *hcl.EvalContext) (*Binding, error) {
	addr := "binding." + b.Name

	var refs []string
	for _, expr := range []hcl.Expression{b.Role, b.Members} {
		r, err := referencedAddresses(expr, nil)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", addr, err)
		}
		refs = append(refs, r...)
	}
	sort.Strings(refs)
	refs = dedupe(refs)

	roleVal, diags := b.Role.Value(scope)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%s: %s", addr, diags.Error())
	}
	if roleVal.Type() != cty.String {
		return nil, fmt.Errorf("%s: role must be a string", addr)
	}

	memberVal, diags := b.Members.Value(scope)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%s: %s", addr, diags.Error())
	}
	var members []string
	for it := memberVal.ElementIterator(); it.Next(); {
		_, v := it.Element()
		if v.Type() != cty.String {
			return nil, fmt.Errorf("%s: members must be strings", addr)
		}
		members = append(members, v.AsString())
	}

	return &Binding{
		Name:     b.Name,
		Resource: b.Resource,
		Role:     roleVal.AsString(),
		Members:  members,
		Refs:     refs,
	}, nil
}

// referencedAddresses extracts resource addresses from an expression's
// traversals. When m is non-nil, each address is checked against the
// declared resources.
func referencedAddresses(expr hcl.Expression, m *Manifest) ([]string, error) {
	var addrs []string
	for _, traversal := range expr.Variables() {
		if len(traversal) < 2 {
			return nil, fmt.Errorf("incomplete reference %q", traversal.RootName())
		}
		root := traversal.RootName()
		if root == "project" {
			continue
		}
		attr, ok := traversal[1].(hcl.TraverseAttr)
		if !ok {
			return nil, fmt.Errorf("invalid reference under %q", root)
		}
		addr := root + "." + attr.Name

		if m != nil {
			switch root {
			case "service_account":
				if m.ServiceAccount(attr.Name) == nil {
					return nil, fmt.Errorf("reference to undeclared %s", addr)
				}
			case "custom_role":
				if m.CustomRole(attr.Name) == nil {
					return nil, fmt.Errorf("reference to undeclared %s", addr)
				}
			default:
				return nil, fmt.Errorf("unknown reference type %q", root)
			}
		}

		addrs = append(addrs, addr)
	}
	return addrs, nil
}

func findManifestFiles(paths []string) ([]string, error) {
	var all []string
	seen := map[string]struct{}{}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to access %s: %w", path, err)
		}

		if !info.IsDir() {
			if _, ok := seen[path]; !ok {
				all = append(all, path)
				seen[path] = struct{}{}
			}
			continue
		}

		err = filepath.Walk(path, func(p string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !fi.IsDir() && filepath.Ext(p) == ".hcl" {
				if _, ok := seen[p]; !ok {
					all = append(all, p)
					seen[p] = struct{}{}
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Strings(all)
	return all, nil
}

func dedupe(in []string) []string {
	var out []string
	var last string
	for i, s := range in {
		if i == 0 || s != last {
			out = append(out, s)
		}
		last = s
	}
	return out
}
