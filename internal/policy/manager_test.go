package policy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(NewStore(filepath.Join(t.TempDir(), "policy_rules.json")))
	if err != nil {
		t.Fatalf("NewManager() error: %v", err)
	}
	return m
}

func allowlisted(userID, groupID string) *ActorContext {
	return &ActorContext{UserID: userID, GroupID: groupID, IsAllowlistUser: true}
}

func intPtr(v int) *int { return &v }

func TestSetThenIsAllowedReproducesPermissions(t *testing.T) {
	// property: a rule set via SetRulePermissions is reproduced
	// exactly by an immediately following IsAllowed
	tests := []struct {
		name   string
		scope  PermissionScope
		sel    PolicySelector
		perms  map[PermissionAction]bool
		actor  *ActorContext
		target *TargetContext
	}{
		{
			name:   "global everyone",
			scope:  ScopeGlobal,
			sel:    PolicySelector{Type: SelectorEveryone},
			perms:  map[PermissionAction]bool{ActionRead: true, ActionCreate: false, ActionRemove: true},
			actor:  allowlisted("u1", ""),
			target: &TargetContext{Scope: ScopeGlobal},
		},
		{
			name:   "group selector",
			scope:  ScopeGroup,
			sel:    PolicySelector{Type: SelectorGroup, Value: "g7"},
			perms:  map[PermissionAction]bool{ActionRead: false, ActionCreate: false, ActionRemove: false},
			actor:  allowlisted("u1", "g7"),
			target: &TargetContext{Scope: ScopeGroup, GroupID: "g7"},
		},
		{
			name:   "personal owner",
			scope:  ScopePersonal,
			sel:    PolicySelector{Type: SelectorOwner},
			perms:  map[PermissionAction]bool{ActionRead: true, ActionCreate: true, ActionRemove: false},
			actor:  allowlisted("u1", ""),
			target: &TargetContext{Scope: ScopePersonal, OwnerID: "u1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager(t)
			if _, _, err := m.SetRulePermissions(tt.scope, tt.sel, nil, tt.perms); err != nil {
				t.Fatalf("SetRulePermissions() error: %v", err)
			}
			for _, action := range Actions {
				got := m.IsAllowed(context.Background(), tt.actor, tt.target, action)
				if got != tt.perms[action] {
					t.Errorf("IsAllowed(%s) = %v, want %v", action, got, tt.perms[action])
				}
			}
		})
	}
}

func TestIdentityCollisionKeepsOneRule(t *testing.T) {
	m := newTestManager(t)
	sel := PolicySelector{Type: SelectorGroup, Value: "g1"}

	first, created, err := m.SetRulePermissions(ScopeGroup, sel, nil,
		map[PermissionAction]bool{ActionRead: true, ActionCreate: true, ActionRemove: true})
	if err != nil || !created {
		t.Fatalf("first SetRulePermissions() = created %v, err %v", created, err)
	}

	second, created, err := m.SetRulePermissions(ScopeGroup, sel, nil,
		map[PermissionAction]bool{ActionRead: false, ActionCreate: false, ActionRemove: false})
	if err != nil {
		t.Fatalf("second SetRulePermissions() error: %v", err)
	}
	if created {
		t.Error("second write to same identity must update, not create")
	}
	if second.ID != first.ID {
		t.Errorf("update must preserve id: got %s, want %s", second.ID, first.ID)
	}
	if second.CreatedAt <= first.CreatedAt {
		t.Error("update must refresh createdAt")
	}

	custom := m.GetCustomRules()
	if len(custom) != 1 {
		t.Fatalf("expected exactly one custom rule, got %d", len(custom))
	}
	for _, action := range Actions {
		if custom[0].Permissions[action] {
			t.Errorf("expected second write's permissions, %s is still allowed", action)
		}
	}
}

func TestCustomRuleOverridesDefault(t *testing.T) {
	// a matching custom rule wins over the default set regardless of
	// its action-level values
	m := newTestManager(t)
	if _, _, err := m.SetRulePermissions(ScopeGroup,
		PolicySelector{Type: SelectorGroup, Value: "100"},
		intPtr(10),
		map[PermissionAction]bool{ActionRemove: false}); err != nil {
		t.Fatal(err)
	}

	actor := allowlisted("u1", "100")
	target := &TargetContext{Scope: ScopeGroup, GroupID: "100"}

	if m.IsAllowed(context.Background(), actor, target, ActionRemove) {
		t.Error("custom remove=false must override the default everyone rule's remove=true")
	}
	if !m.IsAllowed(context.Background(), actor, target, ActionRead) {
		t.Error("read stays allowed via the template baseline")
	}
}

func TestFallbackToDefaultsThenDeny(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	actor := allowlisted("u1", "")
	target := &TargetContext{Scope: ScopePersonal, OwnerID: "u1"}

	// no custom rules: personal create falls back to the defaults
	if !m.IsAllowed(ctx, actor, target, ActionCreate) {
		t.Error("expected fallback to the default personal rules to allow create")
	}

	// actor outside every selector resolves to deny, not error
	stranger := &ActorContext{UserID: "u9"}
	if m.IsAllowed(ctx, stranger, &TargetContext{Scope: ScopeGlobal}, ActionRead) {
		t.Error("expected deny when no rule matches at all")
	}

	// global remove is denied by the default baseline
	if m.IsAllowed(ctx, actor, &TargetContext{Scope: ScopeGlobal}, ActionRemove) {
		t.Error("expected the global default baseline to deny remove")
	}
}

func TestRemoveRulesNewestOnly(t *testing.T) {
	m := newTestManager(t)
	selectors := []PolicySelector{
		{Type: SelectorGroup, Value: "g1"},
		{Type: SelectorGroup, Value: "g2"},
		{Type: SelectorGroup, Value: "g3"},
	}
	var last *PolicyRule
	for _, sel := range selectors {
		r, _, err := m.SetRulePermissions(ScopeGroup, sel, nil, map[PermissionAction]bool{ActionRead: true})
		if err != nil {
			t.Fatal(err)
		}
		last = r
	}

	scope := ScopeGroup
	removed, err := m.RemoveRules(RemoveFilter{Scope: &scope})
	if err != nil {
		t.Fatalf("RemoveRules() error: %v", err)
	}
	if len(removed) != 1 {
		t.Fatalf("expected 1 removed rule, got %d", len(removed))
	}
	if removed[0].ID != last.ID {
		t.Errorf("expected the most recently created rule %s, removed %s", last.ID, removed[0].ID)
	}
	if len(m.GetCustomRules()) != 2 {
		t.Errorf("expected 2 remaining rules, got %d", len(m.GetCustomRules()))
	}
}

func TestRemoveRulesFilters(t *testing.T) {
	m := newTestManager(t)
	if _, _, err := m.SetRulePermissions(ScopeGroup, PolicySelector{Type: SelectorGroup, Value: "g1"}, intPtr(5), map[PermissionAction]bool{ActionRead: true}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := m.SetRulePermissions(ScopeGlobal, PolicySelector{Type: SelectorEveryone}, intPtr(5), map[PermissionAction]bool{ActionRead: true}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := m.SetRulePermissions(ScopePersonal, PolicySelector{Type: SelectorOwner}, intPtr(9), map[PermissionAction]bool{ActionRead: true}); err != nil {
		t.Fatal(err)
	}

	t.Run("no match returns empty, not error", func(t *testing.T) {
		scope := ScopeGroup
		sel := PolicySelector{Type: SelectorUser, Value: "nobody"}
		removed, err := m.RemoveRules(RemoveFilter{Scope: &scope, Selector: &sel, All: true})
		if err != nil {
			t.Fatalf("RemoveRules() error: %v", err)
		}
		if len(removed) != 0 {
			t.Errorf("expected no removals, got %d", len(removed))
		}
	})

	t.Run("priority filter with removeAll", func(t *testing.T) {
		priority := 5
		removed, err := m.RemoveRules(RemoveFilter{Priority: &priority, All: true})
		if err != nil {
			t.Fatalf("RemoveRules() error: %v", err)
		}
		if len(removed) != 2 {
			t.Fatalf("expected priority filter to remove 2 rules, got %d", len(removed))
		}
		if len(m.GetCustomRules()) != 1 {
			t.Errorf("expected 1 remaining rule, got %d", len(m.GetCustomRules()))
		}
	})
}

func TestFailingAdminLookupDeniesWithoutError(t *testing.T) {
	m := newTestManager(t)
	// governs group scope via groupadmin only
	if _, _, err := m.SetRulePermissions(ScopeGroup,
		PolicySelector{Type: SelectorGroupAdmin, Value: "g1"}, nil,
		map[PermissionAction]bool{ActionRemove: true}); err != nil {
		t.Fatal(err)
	}

	actor := &ActorContext{
		UserID:  "u1",
		GroupID: "g1",
		IsGroupAdmin: func(ctx context.Context, groupID string) (bool, error) {
			return false, errors.New("gateway is down")
		},
	}
	// the custom rule does not match (lookup fails closed), and the
	// same failure blocks the default groupadmin rule, so the default
	// everyone rule would govern — but this actor is not allowlisted,
	// so the outcome is a clean deny.
	if m.IsAllowed(context.Background(), actor, &TargetContext{Scope: ScopeGroup, GroupID: "g1"}, ActionRemove) {
		t.Error("expected deny when the admin lookup fails")
	}
}

func TestPriorityTieNewestWins(t *testing.T) {
	m := newTestManager(t)
	if _, _, err := m.SetRulePermissions(ScopeGroup,
		PolicySelector{Type: SelectorGroupMember}, intPtr(7),
		map[PermissionAction]bool{ActionRead: false}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := m.SetRulePermissions(ScopeGroup,
		PolicySelector{Type: SelectorGroup, Value: "g1"}, intPtr(7),
		map[PermissionAction]bool{ActionRead: true}); err != nil {
		t.Fatal(err)
	}

	actor := allowlisted("u1", "g1")
	target := &TargetContext{Scope: ScopeGroup, GroupID: "g1"}
	// both rules match at priority 7; the later one governs
	if !m.IsAllowed(context.Background(), actor, target, ActionRead) {
		t.Error("expected the later-created rule to win the priority tie")
	}
}

func TestAddCustomRulePriorityInheritance(t *testing.T) {
	m := newTestManager(t)

	t.Run("inherits matching default rule priority", func(t *testing.T) {
		r, err := m.AddCustomRule(NewRule{
			Scope:       ScopeGroup,
			Selector:    PolicySelector{Type: SelectorGroupAdmin},
			Permissions: map[PermissionAction]bool{ActionRead: true},
		})
		if err != nil {
			t.Fatal(err)
		}
		if r.Priority != priorityScopeOwner {
			t.Errorf("priority = %d, want inherited default %d", r.Priority, priorityScopeOwner)
		}
	})

	t.Run("no default counterpart falls back to zero", func(t *testing.T) {
		r, err := m.AddCustomRule(NewRule{
			Scope:       ScopeGroup,
			Selector:    PolicySelector{Type: SelectorUser, Value: "u1"},
			Permissions: map[PermissionAction]bool{ActionRead: true},
		})
		if err != nil {
			t.Fatal(err)
		}
		if r.Priority != 0 {
			t.Errorf("priority = %d, want 0", r.Priority)
		}
	})

	t.Run("explicit priority wins", func(t *testing.T) {
		r, err := m.AddCustomRule(NewRule{
			Scope:       ScopePersonal,
			Selector:    PolicySelector{Type: SelectorOwner},
			Permissions: map[PermissionAction]bool{ActionRead: true},
			Priority:    intPtr(42),
		})
		if err != nil {
			t.Fatal(err)
		}
		if r.Priority != 42 {
			t.Errorf("priority = %d, want 42", r.Priority)
		}
	})

	t.Run("replaces colliding identity", func(t *testing.T) {
		before := len(m.GetCustomRules())
		if _, err := m.AddCustomRule(NewRule{
			Scope:       ScopeGroup,
			Selector:    PolicySelector{Type: SelectorUser, Value: "u1"},
			Permissions: map[PermissionAction]bool{ActionRead: false},
		}); err != nil {
			t.Fatal(err)
		}
		if got := len(m.GetCustomRules()); got != before {
			t.Errorf("expected replacement to keep %d rules, got %d", before, got)
		}
	})
}

func TestUpsertPriorityResolutionOrder(t *testing.T) {
	// the upsert path resolves priority existing-custom -> default ->
	// zero, unlike the create path which never consults the custom set
	m := newTestManager(t)
	sel := PolicySelector{Type: SelectorGroupAdmin}

	r, _, err := m.SetRulePermissions(ScopeGroup, sel, nil, map[PermissionAction]bool{ActionRead: true})
	if err != nil {
		t.Fatal(err)
	}
	if r.Priority != priorityScopeOwner {
		t.Fatalf("fresh upsert priority = %d, want default %d", r.Priority, priorityScopeOwner)
	}

	r, _, err = m.SetRulePermissions(ScopeGroup, sel, intPtr(3), map[PermissionAction]bool{ActionRead: true})
	if err != nil {
		t.Fatal(err)
	}
	if r.Priority != 3 {
		t.Fatalf("explicit priority = %d, want 3", r.Priority)
	}

	// omitted priority keeps the existing custom rule's priority, not
	// the default's
	r, _, err = m.SetRulePermissions(ScopeGroup, sel, nil, map[PermissionAction]bool{ActionCreate: false})
	if err != nil {
		t.Fatal(err)
	}
	if r.Priority != 3 {
		t.Errorf("omitted priority on update = %d, want preserved 3", r.Priority)
	}
}

func TestUpdateSinglePermissionLeavesOthersAlone(t *testing.T) {
	m := newTestManager(t)
	sel := PolicySelector{Type: SelectorGroup, Value: "g1"}

	// fresh rule: baseline is the group template (all allowed), with
	// only remove flipped
	r, created, err := m.UpdateSinglePermission(ScopeGroup, sel, nil, ActionRemove, false)
	if err != nil || !created {
		t.Fatalf("UpdateSinglePermission() = created %v, err %v", created, err)
	}
	want := map[PermissionAction]bool{ActionRead: true, ActionCreate: true, ActionRemove: false}
	for _, action := range Actions {
		if r.Permissions[action] != want[action] {
			t.Errorf("permission %s = %v, want %v", action, r.Permissions[action], want[action])
		}
	}

	// second single-action update keeps the earlier flip
	r, created, err = m.UpdateSinglePermission(ScopeGroup, sel, nil, ActionCreate, false)
	if err != nil || created {
		t.Fatalf("UpdateSinglePermission() = created %v, err %v", created, err)
	}
	if r.Permissions[ActionRemove] {
		t.Error("earlier remove=false was lost by a later single-action update")
	}
	if r.Permissions[ActionCreate] {
		t.Error("create was not flipped")
	}
	if !r.Permissions[ActionRead] {
		t.Error("read must keep its template value")
	}
}

func TestSnapshotsAreDeepCopies(t *testing.T) {
	m := newTestManager(t)
	if _, _, err := m.SetRulePermissions(ScopeGlobal, PolicySelector{Type: SelectorEveryone}, nil,
		map[PermissionAction]bool{ActionRead: true}); err != nil {
		t.Fatal(err)
	}

	snap := m.GetCustomRules()
	snap[0].Permissions[ActionRead] = false
	snap[0].Priority = 999

	again := m.GetCustomRules()
	if !again[0].Permissions[ActionRead] || again[0].Priority == 999 {
		t.Error("mutating a returned snapshot must not affect internal state")
	}

	defaults := m.GetDefaultRules()
	defaults[0].Permissions[ActionRead] = !defaults[0].Permissions[ActionRead]
	if m.GetDefaultRules()[0].Permissions[ActionRead] == defaults[0].Permissions[ActionRead] {
		t.Error("mutating a returned default snapshot must not affect internal state")
	}
}

func TestLoadDeduplicatesNewestWinsAndRewrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy_rules.json")
	content := `{"custom": [
		{"id": "old", "scope": "group", "selector": {"type": "group", "value": "g1"},
		 "permissions": {"read": true, "create": true, "remove": true}, "priority": 1, "createdAt": 100},
		{"id": "new", "scope": "group", "selector": {"type": "group", "value": "g1"},
		 "permissions": {"read": false, "create": false, "remove": false}, "priority": 2, "createdAt": 200},
		{"id": "other", "scope": "global", "selector": {"type": "everyone"},
		 "permissions": {"read": true, "create": true, "remove": false}, "priority": 0, "createdAt": 150}
	]}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	store := NewStore(path)
	m, err := NewManager(store)
	if err != nil {
		t.Fatalf("NewManager() error: %v", err)
	}

	custom := m.GetCustomRules()
	if len(custom) != 2 {
		t.Fatalf("expected 2 rules after dedup, got %d", len(custom))
	}
	for _, r := range custom {
		if r.Scope == ScopeGroup && r.ID != "new" {
			t.Errorf("expected the newer duplicate to survive, got %s", r.ID)
		}
	}

	// storage was rewritten without the dropped duplicate
	reloaded, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(reloaded) != 2 {
		t.Errorf("expected rewritten file to hold 2 rules, got %d", len(reloaded))
	}
}

func TestSanitizeDropsUnknownActions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy_rules.json")
	content := `{"custom": [
		{"id": "r1", "scope": "global", "selector": {"type": "everyone"},
		 "permissions": {"read": true, "fly": true}, "priority": 0, "createdAt": 1}
	]}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := NewManager(NewStore(path))
	if err != nil {
		t.Fatal(err)
	}
	rules := m.GetCustomRules()
	if len(rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(rules))
	}
	if _, ok := rules[0].Permissions["fly"]; ok {
		t.Error("unknown action keys must be dropped on load")
	}
	if !rules[0].Permissions[ActionRead] {
		t.Error("known actions must survive sanitizing")
	}
}
