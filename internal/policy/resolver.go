package policy

import (
	"context"
	"sort"
)

// Resolver finds the single rule that governs a decision within one
// rule set.
type Resolver struct {
	matcher *Matcher
}

func NewResolver(matcher *Matcher) *Resolver {
	return &Resolver{matcher: matcher}
}

// Pick filters rules to the target's scope, orders them by priority
// descending with recency breaking ties (newer wins), then scans in
// that order and returns the first rule whose selector matches the
// actor/target pair. The scan is priority-major with early exit: a
// non-matching rule is skipped entirely, so a lower-priority matching
// rule beats a higher-priority non-matching one. Returns nil when no
// candidate matches.
func (r *Resolver) Pick(ctx context.Context, rules []*PolicyRule, actor *ActorContext, target *TargetContext) *PolicyRule {
	if target == nil {
		return nil
	}

	candidates := make([]*PolicyRule, 0, len(rules))
	for _, rule := range rules {
		if rule != nil && rule.Scope == target.Scope {
			candidates = append(candidates, rule)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		return candidates[i].CreatedAt > candidates[j].CreatedAt
	})

	for _, rule := range candidates {
		if r.matcher.Matches(ctx, rule.Selector, actor, target) {
			return rule
		}
	}
	return nil
}
