package policy

import (
	"context"

	"memoji/internal/utils/logger"
)

// Matcher decides whether a rule's selector covers an (actor, target)
// pair. Matching is asynchronous because the groupadmin variant calls
// out through the actor's injected AdminLookup.
type Matcher struct {
	log *logger.Logger
}

func NewMatcher() *Matcher {
	return &Matcher{log: logger.New("policy_matcher")}
}

// Matches evaluates one selector. Unknown selector types never match,
// and variants whose required context fields are absent return false
// rather than erroring.
func (m *Matcher) Matches(ctx context.Context, sel PolicySelector, actor *ActorContext, target *TargetContext) bool {
	if actor == nil || target == nil {
		return false
	}

	switch sel.Type {
	case SelectorAdmin:
		return actor.IsAdmin

	case SelectorEveryone:
		// anyone permitted to interact with the bot at all
		return actor.IsAllowlistUser || actor.IsAllowlistGroup

	case SelectorUser:
		return sel.Value != "" && actor.UserID == sel.Value

	case SelectorGroup:
		return sel.Value != "" && target.GroupID == sel.Value

	case SelectorGroupAdmin:
		groupID := sel.Value
		if groupID == "" {
			groupID = target.GroupID
		}
		if groupID == "" || actor.IsGroupAdmin == nil {
			return false
		}
		isAdmin, err := actor.IsGroupAdmin(ctx, groupID)
		if err != nil {
			// fail closed: an unreachable transport means "not an admin"
			m.log.Debug("group admin lookup failed for group %s: %v", groupID, err)
			return false
		}
		return isAdmin

	case SelectorOwner:
		return target.OwnerID != "" && actor.UserID == target.OwnerID

	case SelectorGroupMember:
		return actor.GroupID != "" && target.GroupID != "" && actor.GroupID == target.GroupID

	default:
		// fail closed on selector kinds this build does not know
		return false
	}
}
