package policy

import "context"

// PermissionScope is the ownership tier a rule applies to
type PermissionScope string

const (
	ScopeGlobal   PermissionScope = "global"
	ScopeGroup    PermissionScope = "group"
	ScopePersonal PermissionScope = "personal"
)

// PermissionAction is one of the three governed operations
type PermissionAction string

const (
	ActionRead   PermissionAction = "read"
	ActionCreate PermissionAction = "create"
	ActionRemove PermissionAction = "remove"
)

// Actions lists the governed actions in bit-string order (read, create, remove)
var Actions = []PermissionAction{ActionRead, ActionCreate, ActionRemove}

// SelectorType tags the closed set of selector variants
type SelectorType string

const (
	SelectorAdmin       SelectorType = "admin"
	SelectorEveryone    SelectorType = "everyone"
	SelectorUser        SelectorType = "user"
	SelectorGroup       SelectorType = "group"
	SelectorGroupAdmin  SelectorType = "groupadmin"
	SelectorOwner       SelectorType = "owner"
	SelectorGroupMember SelectorType = "group_member"
)

// PolicySelector identifies which actors a rule covers. Value is empty
// for variants that carry no payload.
type PolicySelector struct {
	Type  SelectorType `json:"type"`
	Value string       `json:"value,omitempty"`
}

// Identity is the (type, value-or-empty) pair that defines selector
// uniqueness within a rule set
func (s PolicySelector) Identity() string {
	return string(s.Type) + ":" + s.Value
}

func (s PolicySelector) String() string {
	if s.Value == "" {
		return string(s.Type)
	}
	return string(s.Type) + ":" + s.Value
}

// PolicyRule is a single access-control rule. CreatedAt is unix
// milliseconds and is used only for recency tie-breaks and dedup.
type PolicyRule struct {
	ID          string                    `json:"id"`
	Scope       PermissionScope           `json:"scope"`
	Selector    PolicySelector            `json:"selector"`
	Permissions map[PermissionAction]bool `json:"permissions"`
	Priority    int                       `json:"priority"`
	CreatedAt   int64                     `json:"createdAt"`
}

// identityKey defines rule uniqueness: no two rules in one set may
// share the same (scope, selector) identity
func (r *PolicyRule) identityKey() string {
	return string(r.Scope) + "|" + r.Selector.Identity()
}

// Clone returns a deep copy. Callers of the manager's read APIs must
// never be able to mutate internal state through returned rules.
func (r *PolicyRule) Clone() *PolicyRule {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Permissions = make(map[PermissionAction]bool, len(r.Permissions))
	for k, v := range r.Permissions {
		cp.Permissions[k] = v
	}
	return &cp
}

// sanitizePermissions keeps only the three known actions so stored
// rules never carry stray keys. Missing actions stay absent; lookups
// on them yield false (deny).
func sanitizePermissions(perms map[PermissionAction]bool) map[PermissionAction]bool {
	out := make(map[PermissionAction]bool, len(Actions))
	for _, action := range Actions {
		if v, ok := perms[action]; ok {
			out[action] = v
		}
	}
	return out
}

// TargetContext describes what is being accessed. OwnerID is set for
// personal scope, GroupID for group scope.
type TargetContext struct {
	Scope   PermissionScope
	OwnerID string
	GroupID string
}

// AdminLookup reports whether the acting user administrates the given
// group. It is expected to be backed by a short-lived external cache
// and may fail; a failure is treated as "not an admin".
type AdminLookup func(ctx context.Context, groupID string) (bool, error)

// ActorContext describes who is asking, with the cheap flags
// precomputed and the expensive group-admin check deferred. The
// predicate is injected per evaluation, never a package singleton.
type ActorContext struct {
	UserID           string
	GroupID          string
	IsAdmin          bool
	IsAllowlistUser  bool
	IsAllowlistGroup bool
	IsGroupAdmin     AdminLookup
}
