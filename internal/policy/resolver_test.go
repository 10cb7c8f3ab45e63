package policy

import (
	"context"
	"testing"
)

func rule(id string, scope PermissionScope, sel PolicySelector, priority int, createdAt int64) *PolicyRule {
	return &PolicyRule{
		ID:          id,
		Scope:       scope,
		Selector:    sel,
		Permissions: allowAll(),
		Priority:    priority,
		CreatedAt:   createdAt,
	}
}

func TestResolverPick(t *testing.T) {
	actor := &ActorContext{UserID: "u1", GroupID: "g1", IsAllowlistUser: true}
	groupTarget := &TargetContext{Scope: ScopeGroup, GroupID: "g1"}

	tests := []struct {
		name   string
		rules  []*PolicyRule
		target *TargetContext
		wantID string // "" means nil
	}{
		{
			name:   "no rules",
			rules:  nil,
			target: groupTarget,
			wantID: "",
		},
		{
			name: "wrong scope filtered out",
			rules: []*PolicyRule{
				rule("a", ScopeGlobal, PolicySelector{Type: SelectorEveryone}, 10, 1),
			},
			target: groupTarget,
			wantID: "",
		},
		{
			name: "highest priority matching rule wins",
			rules: []*PolicyRule{
				rule("low", ScopeGroup, PolicySelector{Type: SelectorEveryone}, 0, 1),
				rule("high", ScopeGroup, PolicySelector{Type: SelectorGroup, Value: "g1"}, 10, 2),
			},
			target: groupTarget,
			wantID: "high",
		},
		{
			name: "non-matching high priority rule is skipped, not merely deprioritized",
			rules: []*PolicyRule{
				rule("admin-only", ScopeGroup, PolicySelector{Type: SelectorAdmin}, 100, 1),
				rule("everyone", ScopeGroup, PolicySelector{Type: SelectorEveryone}, 0, 2),
			},
			target: groupTarget,
			wantID: "everyone",
		},
		{
			name: "priority tie broken by recency, newest wins",
			rules: []*PolicyRule{
				rule("older", ScopeGroup, PolicySelector{Type: SelectorEveryone}, 5, 100),
				rule("newer", ScopeGroup, PolicySelector{Type: SelectorGroupMember}, 5, 200),
			},
			target: groupTarget,
			wantID: "newer",
		},
		{
			name: "nothing matches",
			rules: []*PolicyRule{
				rule("admin-only", ScopeGroup, PolicySelector{Type: SelectorAdmin}, 100, 1),
				rule("other-user", ScopeGroup, PolicySelector{Type: SelectorUser, Value: "u9"}, 0, 2),
			},
			target: groupTarget,
			wantID: "",
		},
	}

	r := NewResolver(NewMatcher())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Pick(context.Background(), tt.rules, actor, tt.target)
			gotID := ""
			if got != nil {
				gotID = got.ID
			}
			if gotID != tt.wantID {
				t.Errorf("Pick() = %q, want %q", gotID, tt.wantID)
			}
		})
	}
}

func TestResolverPickDoesNotReorderInput(t *testing.T) {
	rules := []*PolicyRule{
		rule("a", ScopeGroup, PolicySelector{Type: SelectorEveryone}, 0, 1),
		rule("b", ScopeGroup, PolicySelector{Type: SelectorEveryone}, 10, 2),
	}
	r := NewResolver(NewMatcher())
	actor := &ActorContext{UserID: "u1", IsAllowlistUser: true}
	r.Pick(context.Background(), rules, actor, &TargetContext{Scope: ScopeGroup, GroupID: "g1"})

	if rules[0].ID != "a" || rules[1].ID != "b" {
		t.Error("Pick must sort a copy, not the caller's slice")
	}
}
