// Package policy implements the permission engine: an ordered list of rules
// loaded from YAML, evaluated first-match-wins with a default deny.
package policy

import (
	"slices"

	"github.com/getbazar/bazar-api/internal/core/domain"
)

// AnyResource in a rule's resources matches every resource.
const AnyResource = "*"

// Rule grants actions on resources to holders of any of roles.
type Rule struct {
	Roles     []domain.RoleName `yaml:"roles"`
	Actions   []string          `yaml:"actions"`
	Resources []string          `yaml:"resources"`
}

func (r Rule) matches(roles []domain.RoleName, action, resource string) bool {
	if !slices.Contains(r.Actions, action) {
		return false
	}
	if !slices.Contains(r.Resources, AnyResource) && !slices.Contains(r.Resources, resource) {
		return false
	}
	for _, role := range roles {
		if slices.Contains(r.Roles, role) {
			return true
		}
	}
	return false
}

// Engine is an immutable, ordered rule set. It is safe for concurrent use.
type Engine struct {
	rules []Rule
}

// NewEngine builds an engine evaluating rules in the given order.
func NewEngine(rules []Rule) *Engine {
	return &Engine{rules: slices.Clone(rules)}
}

// Decide reports whether roles grant action on resource. Rules are checked in
// order and the first match grants; no match (or no roles) denies.
func (e *Engine) Decide(roles []domain.RoleName, action, resource string) bool {
	_, ok := e.Match(roles, action, resource)
	return ok
}

// Match returns the index of the first rule granting the request.
func (e *Engine) Match(roles []domain.RoleName, action, resource string) (int, bool) {
	if e == nil || len(roles) == 0 {
		return -1, false
	}
	for i, r := range e.rules {
		if r.matches(roles, action, resource) {
			return i, true
		}
	}
	return -1, false
}

// Len returns the number of loaded rules.
func (e *Engine) Len() int {
	if e == nil {
		return 0
	}
	return len(e.rules)
}
