package policy

import (
	"context"
	"errors"
	"testing"
)

func TestMatcherMatches(t *testing.T) {
	actor := &ActorContext{
		UserID:          "u1",
		GroupID:         "g1",
		IsAllowlistUser: true,
	}

	tests := []struct {
		name   string
		sel    PolicySelector
		actor  *ActorContext
		target *TargetContext
		want   bool
	}{
		{
			name:   "admin matches static admin",
			sel:    PolicySelector{Type: SelectorAdmin},
			actor:  &ActorContext{UserID: "u1", IsAdmin: true},
			target: &TargetContext{Scope: ScopeGlobal},
			want:   true,
		},
		{
			name:   "admin rejects non admin",
			sel:    PolicySelector{Type: SelectorAdmin},
			actor:  actor,
			target: &TargetContext{Scope: ScopeGlobal},
			want:   false,
		},
		{
			name:   "everyone matches allowlisted user",
			sel:    PolicySelector{Type: SelectorEveryone},
			actor:  actor,
			target: &TargetContext{Scope: ScopeGlobal},
			want:   true,
		},
		{
			name:   "everyone matches allowlisted group",
			sel:    PolicySelector{Type: SelectorEveryone},
			actor:  &ActorContext{UserID: "u2", IsAllowlistGroup: true},
			target: &TargetContext{Scope: ScopeGlobal},
			want:   true,
		},
		{
			name:   "everyone rejects actor outside the allowlist",
			sel:    PolicySelector{Type: SelectorEveryone},
			actor:  &ActorContext{UserID: "u2"},
			target: &TargetContext{Scope: ScopeGlobal},
			want:   false,
		},
		{
			name:   "user matches by id",
			sel:    PolicySelector{Type: SelectorUser, Value: "u1"},
			actor:  actor,
			target: &TargetContext{Scope: ScopePersonal, OwnerID: "u1"},
			want:   true,
		},
		{
			name:   "user rejects other id",
			sel:    PolicySelector{Type: SelectorUser, Value: "u2"},
			actor:  actor,
			target: &TargetContext{Scope: ScopePersonal, OwnerID: "u1"},
			want:   false,
		},
		{
			name:   "group matches target group",
			sel:    PolicySelector{Type: SelectorGroup, Value: "g1"},
			actor:  actor,
			target: &TargetContext{Scope: ScopeGroup, GroupID: "g1"},
			want:   true,
		},
		{
			name:   "group rejects different target group",
			sel:    PolicySelector{Type: SelectorGroup, Value: "g2"},
			actor:  actor,
			target: &TargetContext{Scope: ScopeGroup, GroupID: "g1"},
			want:   false,
		},
		{
			name:   "owner matches target owner",
			sel:    PolicySelector{Type: SelectorOwner},
			actor:  actor,
			target: &TargetContext{Scope: ScopePersonal, OwnerID: "u1"},
			want:   true,
		},
		{
			name:   "owner without target owner never matches",
			sel:    PolicySelector{Type: SelectorOwner},
			actor:  actor,
			target: &TargetContext{Scope: ScopePersonal},
			want:   false,
		},
		{
			name:   "group_member matches same group",
			sel:    PolicySelector{Type: SelectorGroupMember},
			actor:  actor,
			target: &TargetContext{Scope: ScopeGroup, GroupID: "g1"},
			want:   true,
		},
		{
			name:   "group_member without target group never matches",
			sel:    PolicySelector{Type: SelectorGroupMember},
			actor:  actor,
			target: &TargetContext{Scope: ScopeGroup},
			want:   false,
		},
		{
			name:   "unknown selector type fails closed",
			sel:    PolicySelector{Type: "sorcerer"},
			actor:  actor,
			target: &TargetContext{Scope: ScopeGlobal},
			want:   false,
		},
		{
			name:   "nil actor never matches",
			sel:    PolicySelector{Type: SelectorEveryone},
			actor:  nil,
			target: &TargetContext{Scope: ScopeGlobal},
			want:   false,
		},
	}

	m := NewMatcher()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.Matches(context.Background(), tt.sel, tt.actor, tt.target)
			if got != tt.want {
				t.Errorf("Matches(%v) = %v, want %v", tt.sel, got, tt.want)
			}
		})
	}
}

func TestMatcherGroupAdmin(t *testing.T) {
	target := &TargetContext{Scope: ScopeGroup, GroupID: "g1"}

	tests := []struct {
		name   string
		sel    PolicySelector
		lookup AdminLookup
		want   bool
	}{
		{
			name: "positive lookup with explicit group",
			sel:  PolicySelector{Type: SelectorGroupAdmin, Value: "g1"},
			lookup: func(ctx context.Context, groupID string) (bool, error) {
				return groupID == "g1", nil
			},
			want: true,
		},
		{
			name: "value absent falls back to target group",
			sel:  PolicySelector{Type: SelectorGroupAdmin},
			lookup: func(ctx context.Context, groupID string) (bool, error) {
				return groupID == "g1", nil
			},
			want: true,
		},
		{
			name: "negative lookup",
			sel:  PolicySelector{Type: SelectorGroupAdmin, Value: "g1"},
			lookup: func(ctx context.Context, groupID string) (bool, error) {
				return false, nil
			},
			want: false,
		},
		{
			name: "lookup failure resolves to not an admin",
			sel:  PolicySelector{Type: SelectorGroupAdmin, Value: "g1"},
			lookup: func(ctx context.Context, groupID string) (bool, error) {
				return false, errors.New("transport unreachable")
			},
			want: false,
		},
		{
			name:   "no predicate injected",
			sel:    PolicySelector{Type: SelectorGroupAdmin, Value: "g1"},
			lookup: nil,
			want:   false,
		},
	}

	m := NewMatcher()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actor := &ActorContext{UserID: "u1", GroupID: "g1", IsGroupAdmin: tt.lookup}
			got := m.Matches(context.Background(), tt.sel, actor, target)
			if got != tt.want {
				t.Errorf("Matches(groupadmin) = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("no group anywhere never calls the predicate", func(t *testing.T) {
		called := false
		actor := &ActorContext{UserID: "u1", IsGroupAdmin: func(ctx context.Context, groupID string) (bool, error) {
			called = true
			return true, nil
		}}
		if m.Matches(context.Background(), PolicySelector{Type: SelectorGroupAdmin}, actor, &TargetContext{Scope: ScopeGroup}) {
			t.Error("expected no match without a group id")
		}
		if called {
			t.Error("predicate should not be called without a group id")
		}
	})
}
