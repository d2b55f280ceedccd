package gate

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/jrsteele09/go-billing-portal/users"
	"gopkg.in/yaml.v3"
)

// Rule requires one of Roles for every path under Prefix.
type Rule struct {
	Prefix string   `yaml:"prefix"`
	Roles  []string `yaml:"roles"`
}

// Policy maps path prefixes to required roles. The longest matching prefix
// wins. Paths with no rule only need a session.
type Policy struct {
	Rules []Rule `yaml:"rules"`
}

// DefaultPolicy restricts user administration to administrators.
func DefaultPolicy() *Policy {
	return NewPolicy([]Rule{
		{Prefix: "/pages/usuarios", Roles: []string{users.RoleAdministrador}},
		{Prefix: "/usuario/", Roles: []string{users.RoleAdministrador}},
	})
}

func NewPolicy(rules []Rule) *Policy {
	p := &Policy{}
	for _, r := range rules {
		prefix := strings.ToLower(strings.TrimSpace(r.Prefix))
		if prefix == "" {
			continue
		}
		p.Rules = append(p.Rules, Rule{Prefix: prefix, Roles: r.Roles})
	}
	sort.SliceStable(p.Rules, func(i, j int) bool {
		return len(p.Rules[i].Prefix) > len(p.Rules[j].Prefix)
	})
	return p
}

// LoadPolicy reads a YAML policy file:
//
//	rules:
//	  - prefix: /pages/usuarios
//	    roles: [Administrador]
func LoadPolicy(file string) (*Policy, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read access policy: %w", err)
	}

	var raw Policy
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse access policy: %w", err)
	}
	return NewPolicy(raw.Rules), nil
}

// RequiredRoles returns the roles the path demands, if any.
func (p *Policy) RequiredRoles(path string) []string {
	if p == nil {
		return nil
	}
	lower := strings.ToLower(path)
	for _, r := range p.Rules {
		if strings.HasPrefix(lower, r.Prefix) {
			return r.Roles
		}
	}
	return nil
}
