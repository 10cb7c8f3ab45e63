package policy

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"memoji/internal/utils/logger"
)

// Manager owns the in-memory custom rule list and its on-disk mirror.
// No other component writes the rule file.
//
// Mutating operations hold the write lock for their whole duration,
// so they are atomic from the caller's point of view. IsAllowed
// snapshots the rule set under the read lock and then evaluates
// selectors without it (the group-admin lookup can block); a read
// racing a write observes either the old or the new rule set, never a
// half-written rule, because every mutation swaps whole rule objects.
type Manager struct {
	mu       sync.RWMutex
	store    *Store
	resolver *Resolver
	custom   []*PolicyRule
	defaults []*PolicyRule
	clock    int64
	log      *logger.Logger
}

// NewRule is the caller-supplied part of a rule for AddCustomRule.
// ID and CreatedAt are assigned by the manager.
type NewRule struct {
	Scope       PermissionScope
	Selector    PolicySelector
	Permissions map[PermissionAction]bool
	Priority    *int
}

// RemoveFilter selects custom rules for removal. Nil fields match
// everything. When All is false only the most recently created match
// is removed.
type RemoveFilter struct {
	Scope    *PermissionScope
	Selector *PolicySelector
	Priority *int
	All      bool
}

// RuleList is a read-only snapshot of both rule sets.
type RuleList struct {
	Custom   []*PolicyRule
	Defaults []*PolicyRule
}

// NewManager loads the persisted custom rules, deduplicates them
// newest-wins (rewriting the file if any duplicates were dropped) and
// builds the immutable default set.
func NewManager(store *Store) (*Manager, error) {
	m := &Manager{
		store:    store,
		resolver: NewResolver(NewMatcher()),
		defaults: buildDefaultRules(),
		log:      logger.New("policy_manager"),
	}

	loaded, err := store.Load()
	if err != nil {
		return nil, err
	}

	// newest wins across duplicate identities in the stored list
	byIdentity := make(map[string]*PolicyRule, len(loaded))
	for _, rule := range loaded {
		if rule == nil {
			continue
		}
		rule.Permissions = sanitizePermissions(rule.Permissions)
		if rule.ID == "" {
			rule.ID = uuid.New().String()
		}
		existing, ok := byIdentity[rule.identityKey()]
		if !ok || rule.CreatedAt >= existing.CreatedAt {
			byIdentity[rule.identityKey()] = rule
		}
		if rule.CreatedAt > m.clock {
			m.clock = rule.CreatedAt
		}
	}
	custom := make([]*PolicyRule, 0, len(byIdentity))
	for _, rule := range loaded {
		if rule != nil && byIdentity[rule.identityKey()] == rule {
			custom = append(custom, rule)
		}
	}
	m.custom = custom

	if len(custom) != len(loaded) {
		m.log.Warn("dropped %d duplicate custom rules on load", len(loaded)-len(custom))
		if err := store.Save(custom); err != nil {
			return nil, err
		}
	}

	m.log.Info("policy manager ready: %d custom rules, %d default rules", len(custom), len(m.defaults))
	return m, nil
}

// now returns a monotonically increasing unix-millisecond timestamp.
// Two writes landing in the same millisecond still order correctly.
func (m *Manager) now() int64 {
	ts := time.Now().UnixMilli()
	if ts <= m.clock {
		ts = m.clock + 1
	}
	m.clock = ts
	return ts
}

// snapshot returns the current custom rule slice. Rules are never
// mutated in place after publication, so sharing pointers with an
// in-flight reader is safe.
func (m *Manager) snapshot() []*PolicyRule {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.custom
}

// IsAllowed decides whether the actor may perform the action on the
// target: custom rules first, then defaults, then deny.
func (m *Manager) IsAllowed(ctx context.Context, actor *ActorContext, target *TargetContext, action PermissionAction) bool {
	rule := m.resolver.Pick(ctx, m.snapshot(), actor, target)
	if rule == nil {
		rule = m.resolver.Pick(ctx, m.defaults, actor, target)
	}
	if rule == nil {
		return false
	}
	return rule.Permissions[action]
}

// defaultPriorityFor returns the priority of the default rule sharing
// the given (scope, selector) identity, or 0 when none exists.
func (m *Manager) defaultPriorityFor(scope PermissionScope, selector PolicySelector) int {
	probe := PolicyRule{Scope: scope, Selector: selector}
	for _, rule := range m.defaults {
		if rule.identityKey() == probe.identityKey() {
			return rule.Priority
		}
	}
	return 0
}

func findByIdentity(rules []*PolicyRule, scope PermissionScope, selector PolicySelector) (int, *PolicyRule) {
	probe := PolicyRule{Scope: scope, Selector: selector}
	for i, rule := range rules {
		if rule.identityKey() == probe.identityKey() {
			return i, rule
		}
	}
	return -1, nil
}

// AddCustomRule assigns a fresh id and timestamp and inserts the
// rule, replacing any existing custom rule with the same identity.
// An omitted priority inherits the matching default rule's priority
// (note: not an existing custom rule's — the create path resolves
// priority differently from the upsert path on purpose).
func (m *Manager) AddCustomRule(nr NewRule) (*PolicyRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	priority := 0
	if nr.Priority != nil {
		priority = *nr.Priority
	} else {
		priority = m.defaultPriorityFor(nr.Scope, nr.Selector)
	}

	rule := &PolicyRule{
		ID:          uuid.New().String(),
		Scope:       nr.Scope,
		Selector:    nr.Selector,
		Permissions: sanitizePermissions(nr.Permissions),
		Priority:    priority,
		CreatedAt:   m.now(),
	}

	custom := make([]*PolicyRule, 0, len(m.custom)+1)
	for _, existing := range m.custom {
		if existing.identityKey() != rule.identityKey() {
			custom = append(custom, existing)
		}
	}
	custom = append(custom, rule)
	m.custom = custom

	if err := m.store.Save(m.custom); err != nil {
		return nil, err
	}
	m.log.Info("added custom rule %s (%s/%s, priority %d)", rule.ID, rule.Scope, rule.Selector, rule.Priority)
	return rule.Clone(), nil
}

// SetRulePermissions upserts the permission map for the (scope,
// selector) identity. For an existing rule the given actions are
// applied over its current map (id preserved, createdAt refreshed);
// for a new rule the baseline comes from the per-scope default
// template. An omitted priority keeps the existing rule's priority,
// falling back to the default-priority lookup. Reports whether a new
// rule was created.
func (m *Manager) SetRulePermissions(scope PermissionScope, selector PolicySelector, priority *int, perms map[PermissionAction]bool) (*PolicyRule, bool, error) {
	return m.upsert(scope, selector, priority, perms)
}

// UpdateSinglePermission is SetRulePermissions for exactly one
// action; the other actions keep their current (or template) values.
func (m *Manager) UpdateSinglePermission(scope PermissionScope, selector PolicySelector, priority *int, action PermissionAction, value bool) (*PolicyRule, bool, error) {
	return m.upsert(scope, selector, priority, map[PermissionAction]bool{action: value})
}

func (m *Manager) upsert(scope PermissionScope, selector PolicySelector, priority *int, perms map[PermissionAction]bool) (*PolicyRule, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, existing := findByIdentity(m.custom, scope, selector)
	created := existing == nil

	var rule *PolicyRule
	if created {
		rule = &PolicyRule{
			ID:          uuid.New().String(),
			Scope:       scope,
			Selector:    selector,
			Permissions: defaultTemplate(scope),
		}
	} else {
		// whole-object replace keeps in-flight readers consistent
		rule = existing.Clone()
	}
	rule.CreatedAt = m.now()

	switch {
	case priority != nil:
		rule.Priority = *priority
	case created:
		rule.Priority = m.defaultPriorityFor(scope, selector)
	}

	for _, action := range Actions {
		if v, ok := perms[action]; ok {
			rule.Permissions[action] = v
		}
	}
	rule.Permissions = sanitizePermissions(rule.Permissions)

	custom := make([]*PolicyRule, len(m.custom))
	copy(custom, m.custom)
	if created {
		custom = append(custom, rule)
	} else {
		custom[idx] = rule
	}
	m.custom = custom

	if err := m.store.Save(m.custom); err != nil {
		return nil, false, err
	}
	return rule.Clone(), created, nil
}

// RemoveRules deletes the custom rules matching the filter and
// returns snapshots of what was removed. No match is not an error.
func (m *Manager) RemoveRules(filter RemoveFilter) ([]*PolicyRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	matched := make([]*PolicyRule, 0)
	for _, rule := range m.custom {
		if filter.Scope != nil && rule.Scope != *filter.Scope {
			continue
		}
		if filter.Selector != nil && rule.Selector.Identity() != filter.Selector.Identity() {
			continue
		}
		if filter.Priority != nil && rule.Priority != *filter.Priority {
			continue
		}
		matched = append(matched, rule)
	}
	if len(matched) == 0 {
		return []*PolicyRule{}, nil
	}

	if !filter.All {
		newest := matched[0]
		for _, rule := range matched[1:] {
			if rule.CreatedAt > newest.CreatedAt {
				newest = rule
			}
		}
		matched = []*PolicyRule{newest}
	}

	drop := make(map[string]bool, len(matched))
	for _, rule := range matched {
		drop[rule.ID] = true
	}
	custom := make([]*PolicyRule, 0, len(m.custom)-len(matched))
	for _, rule := range m.custom {
		if !drop[rule.ID] {
			custom = append(custom, rule)
		}
	}
	m.custom = custom

	if err := m.store.Save(m.custom); err != nil {
		return nil, err
	}

	removed := make([]*PolicyRule, 0, len(matched))
	for _, rule := range matched {
		removed = append(removed, rule.Clone())
	}
	m.log.Info("removed %d custom rules", len(removed))
	return removed, nil
}

// GetCustomRules returns a deep copy of the custom rule list.
func (m *Manager) GetCustomRules() []*PolicyRule {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneRules(m.custom)
}

// GetDefaultRules returns a deep copy of the built-in rule list.
func (m *Manager) GetDefaultRules() []*PolicyRule {
	return cloneRules(m.defaults)
}

// ListRules returns deep copies of both rule sets.
func (m *Manager) ListRules() RuleList {
	return RuleList{
		Custom:   m.GetCustomRules(),
		Defaults: m.GetDefaultRules(),
	}
}

func cloneRules(rules []*PolicyRule) []*PolicyRule {
	out := make([]*PolicyRule, 0, len(rules))
	for _, rule := range rules {
		out = append(out, rule.Clone())
	}
	return out
}
