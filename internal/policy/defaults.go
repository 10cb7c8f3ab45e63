package policy

import "github.com/google/uuid"

// Built-in rule priorities. Admin overrides beat the scope-owner
// rules, which beat the everyone baseline.
const (
	priorityAdmin      = 100
	priorityScopeOwner = 50
	priorityBaseline   = 0
)

// defaultTemplate is the per-scope permission baseline used when an
// upsert has to seed a brand-new rule: global denies remove, group
// and personal scopes allow everything.
func defaultTemplate(scope PermissionScope) map[PermissionAction]bool {
	if scope == ScopeGlobal {
		return map[PermissionAction]bool{
			ActionRead:   true,
			ActionCreate: true,
			ActionRemove: false,
		}
	}
	return map[PermissionAction]bool{
		ActionRead:   true,
		ActionCreate: true,
		ActionRemove: true,
	}
}

func allowAll() map[PermissionAction]bool {
	return map[PermissionAction]bool{
		ActionRead:   true,
		ActionCreate: true,
		ActionRemove: true,
	}
}

// buildDefaultRules constructs the immutable baseline rule set. It is
// built once at startup, never persisted and never mutated. Duplicate
// (scope, selector) identities are resolved oldest-wins so the
// baseline priorities stay stable across restarts.
func buildDefaultRules() []*PolicyRule {
	raw := []*PolicyRule{
		{Scope: ScopeGlobal, Selector: PolicySelector{Type: SelectorAdmin}, Priority: priorityAdmin, Permissions: allowAll()},
		{Scope: ScopeGroup, Selector: PolicySelector{Type: SelectorAdmin}, Priority: priorityAdmin, Permissions: allowAll()},
		{Scope: ScopePersonal, Selector: PolicySelector{Type: SelectorAdmin}, Priority: priorityAdmin, Permissions: allowAll()},
		{Scope: ScopeGroup, Selector: PolicySelector{Type: SelectorGroupAdmin}, Priority: priorityScopeOwner, Permissions: allowAll()},
		{Scope: ScopePersonal, Selector: PolicySelector{Type: SelectorOwner}, Priority: priorityScopeOwner, Permissions: allowAll()},
		{Scope: ScopeGlobal, Selector: PolicySelector{Type: SelectorEveryone}, Priority: priorityBaseline, Permissions: defaultTemplate(ScopeGlobal)},
		{Scope: ScopeGroup, Selector: PolicySelector{Type: SelectorEveryone}, Priority: priorityBaseline, Permissions: defaultTemplate(ScopeGroup)},
		{Scope: ScopePersonal, Selector: PolicySelector{Type: SelectorEveryone}, Priority: priorityBaseline, Permissions: defaultTemplate(ScopePersonal)},
	}

	seen := make(map[string]bool, len(raw))
	rules := make([]*PolicyRule, 0, len(raw))
	var clock int64
	for _, rule := range raw {
		if seen[rule.identityKey()] {
			continue // oldest wins
		}
		seen[rule.identityKey()] = true
		clock++
		rule.ID = uuid.New().String()
		rule.CreatedAt = clock
		rule.Permissions = sanitizePermissions(rule.Permissions)
		rules = append(rules, rule)
	}
	return rules
}
