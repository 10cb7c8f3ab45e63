package bot

import (
	"context"
	"fmt"
	"strings"

	"memoji/internal/gateway"
	"memoji/internal/policy"
)

func (b *Bot) handlePerm(ctx context.Context, actor *policy.ActorContext, args []string) gateway.Message {
	// permission management is gated on the engine itself: only
	// actors allowed to remove in global scope (bot admins by
	// default) may edit rules
	if !b.policies.IsAllowed(ctx, actor, &policy.TargetContext{Scope: policy.ScopeGlobal}, policy.ActionRemove) {
		return textReply("you are not allowed to manage permissions")
	}

	if len(args) == 0 {
		return textReply("usage: perm <set|rules|remove> ...")
	}
	switch args[0] {
	case "set":
		return b.handlePermSet(actor, args[1:])
	case "rules":
		return b.handlePermRules(actor, args[1:])
	case "remove", "delete", "rm":
		return b.handlePermRemove(actor, args[1:])
	default:
		return textReply(fmt.Sprintf("unknown perm command %q, expected set/rules/remove", args[0]))
	}
}

// isBits reports whether the token is the 3-character permission
// bit-string notation
func isBits(token string) bool {
	if len(token) != 3 {
		return false
	}
	for _, c := range token {
		if c != '0' && c != '1' {
			return false
		}
	}
	return true
}

// handlePermSet implements:
//
//	perm set <scope> <selector> <bits> [priority]
//	perm set <scope> <selector> <action> <0|1> [priority]
func (b *Bot) handlePermSet(actor *policy.ActorContext, args []string) gateway.Message {
	if len(args) < 3 {
		return textReply("usage: perm set <scope> <selector> <bits|action 0/1> [priority]")
	}

	scope, err := policy.ParseScope(args[0])
	if err != nil {
		return textReply(err.Error())
	}
	selector, err := policy.ParseSelector(scope, args[1], actor)
	if err != nil {
		return textReply(err.Error())
	}

	rest := args[2:]
	var (
		rule     *policy.PolicyRule
		created  bool
		consumed int
	)

	if isBits(rest[0]) {
		perms, err := policy.ParsePermissionBits(rest[0])
		if err != nil {
			return textReply(err.Error())
		}
		consumed = 1
		priority, msg := trailingPriority(rest, consumed)
		if msg != "" {
			return textReply(msg)
		}
		rule, created, err = b.policies.SetRulePermissions(scope, selector, priority, perms)
		if err != nil {
			b.log.Warn("SetRulePermissions failed: %v", err)
			return textReply("failed to store the rule, try again later")
		}
	} else {
		action, err := policy.ParseAction(rest[0])
		if err != nil {
			return textReply(err.Error())
		}
		if len(rest) < 2 || (rest[1] != "0" && rest[1] != "1") {
			return textReply(fmt.Sprintf("action %q needs a 0 or 1 value", rest[0]))
		}
		consumed = 2
		priority, msg := trailingPriority(rest, consumed)
		if msg != "" {
			return textReply(msg)
		}
		rule, created, err = b.policies.UpdateSinglePermission(scope, selector, priority, action, rest[1] == "1")
		if err != nil {
			b.log.Warn("UpdateSinglePermission failed: %v", err)
			return textReply("failed to store the rule, try again later")
		}
	}

	verb := "updated"
	if created {
		verb = "created"
	}
	return textReply(fmt.Sprintf("%s rule %s", verb, formatRule(rule)))
}

// trailingPriority consumes an optional bare integer after the
// permission tokens. A non-empty message means a validation failure.
func trailingPriority(rest []string, consumed int) (*int, string) {
	if len(rest) <= consumed {
		return nil, ""
	}
	priority, err := policy.ParsePriority(rest[consumed])
	if err != nil {
		return nil, err.Error()
	}
	if len(rest) > consumed+1 {
		return nil, fmt.Sprintf("unexpected token %q after the priority", rest[consumed+1])
	}
	return &priority, ""
}

func (b *Bot) handlePermRules(actor *policy.ActorContext, args []string) gateway.Message {
	var scopeFilter *policy.PermissionScope
	if len(args) > 0 {
		scope, err := policy.ParseScope(args[0])
		if err != nil {
			return textReply(err.Error())
		}
		scopeFilter = &scope
	}

	list := b.policies.ListRules()
	var sb strings.Builder
	sb.WriteString("custom rules:\n")
	sb.WriteString(formatRules(list.Custom, scopeFilter))
	sb.WriteString("default rules:\n")
	sb.WriteString(formatRules(list.Defaults, scopeFilter))
	return textReply(strings.TrimRight(sb.String(), "\n"))
}

// handlePermRemove implements: perm remove [scope] [selector]
// [priority] [all] — every filter optional, in any sensible order.
func (b *Bot) handlePermRemove(actor *policy.ActorContext, args []string) gateway.Message {
	filter := policy.RemoveFilter{}

	for _, token := range args {
		if token == "all" {
			filter.All = true
			continue
		}
		if filter.Scope == nil {
			if scope, err := policy.ParseScope(token); err == nil {
				filter.Scope = &scope
				continue
			}
		}
		if filter.Priority == nil {
			if priority, err := policy.ParsePriority(token); err == nil {
				filter.Priority = &priority
				continue
			}
		}
		if filter.Selector == nil {
			scope := defaultScope(actor)
			if filter.Scope != nil {
				scope = *filter.Scope
			}
			selector, err := policy.ParseSelector(scope, token, actor)
			if err != nil {
				return textReply(err.Error())
			}
			filter.Selector = &selector
			continue
		}
		return textReply(fmt.Sprintf("unexpected token %q", token))
	}

	removed, err := b.policies.RemoveRules(filter)
	if err != nil {
		b.log.Warn("RemoveRules failed: %v", err)
		return textReply("failed to remove rules, try again later")
	}
	if len(removed) == 0 {
		return textReply("no rules matched")
	}

	lines := make([]string, 0, len(removed))
	for _, rule := range removed {
		lines = append(lines, formatRule(rule))
	}
	return textReply(fmt.Sprintf("removed %d rule(s):\n%s", len(removed), strings.Join(lines, "\n")))
}
