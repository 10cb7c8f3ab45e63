package policy

import (
	"fmt"
	"strconv"
	"strings"
)

// Token parsing for the chat command surface. Errors from this file
// are user-facing: they end up verbatim in bot replies, so they are
// plain sentences, not error codes.

var scopeTokens = map[string]PermissionScope{
	"global": ScopeGlobal, "g": ScopeGlobal, "all": ScopeGlobal, "public": ScopeGlobal,
	"group": ScopeGroup, "c": ScopeGroup, "chat": ScopeGroup, "channel": ScopeGroup, "guild": ScopeGroup,
	"personal": ScopePersonal, "p": ScopePersonal, "user": ScopePersonal, "private": ScopePersonal,
	"person": ScopePersonal, "self": ScopePersonal,
}

var actionTokens = map[string]PermissionAction{
	"read": ActionRead, "view": ActionRead, "r": ActionRead, "v": ActionRead,
	"create": ActionCreate, "save": ActionCreate, "write": ActionCreate,
	"c": ActionCreate, "w": ActionCreate, "s": ActionCreate,
	"remove": ActionRemove, "delete": ActionRemove, "del": ActionRemove,
	"d": ActionRemove, "rm": ActionRemove,
}

var selectorTypeTokens = map[string]SelectorType{
	"admin":          SelectorAdmin,
	"everyone":       SelectorEveryone,
	"allowlist_user": SelectorEveryone,
	"user":           SelectorUser,
	"group":          SelectorGroup,
	"groupadmin":     SelectorGroupAdmin,
	"owner":          SelectorOwner,
	"group_member":   SelectorGroupMember,
}

// ParseScope translates a scope keyword into a PermissionScope.
func ParseScope(token string) (PermissionScope, error) {
	if scope, ok := scopeTokens[strings.ToLower(strings.TrimSpace(token))]; ok {
		return scope, nil
	}
	return "", fmt.Errorf("unknown scope %q, expected one of global/group/personal", token)
}

// ParseAction translates an action keyword into a PermissionAction.
func ParseAction(token string) (PermissionAction, error) {
	if action, ok := actionTokens[strings.ToLower(strings.TrimSpace(token))]; ok {
		return action, nil
	}
	return "", fmt.Errorf("unknown action %q, expected one of read/create/remove", token)
}

// ParseSelector translates a selector token relative to the acting
// user's context:
//
//   - bare "-" or an empty token is the default selector for the
//     scope: everyone for global, the acting user for personal, the
//     current group for group
//   - "@<id>" is a user selector
//   - "type" or "type:value" names a selector variant; group,
//     groupadmin and group_member default their value to the current
//     group when omitted
func ParseSelector(scope PermissionScope, token string, actor *ActorContext) (PolicySelector, error) {
	token = strings.TrimSpace(token)

	if token == "" || token == "-" {
		switch scope {
		case ScopeGlobal:
			return PolicySelector{Type: SelectorEveryone}, nil
		case ScopePersonal:
			if actor == nil || actor.UserID == "" {
				return PolicySelector{}, fmt.Errorf("no acting user to build a personal selector from")
			}
			return PolicySelector{Type: SelectorUser, Value: actor.UserID}, nil
		case ScopeGroup:
			if actor == nil || actor.GroupID == "" {
				return PolicySelector{}, fmt.Errorf("no current group to build a group selector from")
			}
			return PolicySelector{Type: SelectorGroup, Value: actor.GroupID}, nil
		default:
			return PolicySelector{}, fmt.Errorf("unknown scope %q", scope)
		}
	}

	if strings.HasPrefix(token, "@") {
		id := strings.TrimPrefix(token, "@")
		if id == "" {
			return PolicySelector{}, fmt.Errorf("user selector %q has no user id", token)
		}
		return PolicySelector{Type: SelectorUser, Value: id}, nil
	}

	name, value := token, ""
	if i := strings.Index(token, ":"); i >= 0 {
		name, value = token[:i], token[i+1:]
	}

	selType, ok := selectorTypeTokens[strings.ToLower(name)]
	if !ok {
		return PolicySelector{}, fmt.Errorf("unknown selector %q", token)
	}

	switch selType {
	case SelectorUser:
		if value == "" {
			return PolicySelector{}, fmt.Errorf("selector %q needs a user id, e.g. user:12345", token)
		}
	case SelectorGroup, SelectorGroupAdmin, SelectorGroupMember:
		if value == "" && actor != nil {
			value = actor.GroupID
		}
		if selType == SelectorGroup && value == "" {
			return PolicySelector{}, fmt.Errorf("selector %q needs a group id and there is no current group", token)
		}
	default:
		// admin / everyone / owner carry no payload
		value = ""
	}

	return PolicySelector{Type: selType, Value: value}, nil
}

// ParsePriority parses a bare integer priority token.
func ParsePriority(token string) (int, error) {
	priority, err := strconv.Atoi(strings.TrimSpace(token))
	if err != nil {
		return 0, fmt.Errorf("priority %q is not an integer", token)
	}
	return priority, nil
}

// ParsePermissionBits parses the 3-character bit-string notation:
// one character from {0,1} per action, in read, create, remove
// order. Any other length or character fails validation.
func ParsePermissionBits(token string) (map[PermissionAction]bool, error) {
	token = strings.TrimSpace(token)
	if len(token) != len(Actions) {
		return nil, fmt.Errorf("permission bits %q must be exactly %d characters of 0/1 (read, create, remove)", token, len(Actions))
	}
	perms := make(map[PermissionAction]bool, len(Actions))
	for i, action := range Actions {
		switch token[i] {
		case '0':
			perms[action] = false
		case '1':
			perms[action] = true
		default:
			return nil, fmt.Errorf("permission bits %q may only contain 0 and 1", token)
		}
	}
	return perms, nil
}
