package bot

import (
	"fmt"
	"strings"

	"memoji/internal/policy"
)

// formatRule renders one rule the way replies show it:
// [group] group:100 110 (priority 10)
func formatRule(rule *policy.PolicyRule) string {
	var bits strings.Builder
	for _, action := range policy.Actions {
		if rule.Permissions[action] {
			bits.WriteByte('1')
		} else {
			bits.WriteByte('0')
		}
	}
	return fmt.Sprintf("[%s] %s %s (priority %d)", rule.Scope, rule.Selector, bits.String(), rule.Priority)
}

func formatRules(rules []*policy.PolicyRule, scopeFilter *policy.PermissionScope) string {
	var sb strings.Builder
	count := 0
	for _, rule := range rules {
		if scopeFilter != nil && rule.Scope != *scopeFilter {
			continue
		}
		sb.WriteString("  " + formatRule(rule) + "\n")
		count++
	}
	if count == 0 {
		return "  (none)\n"
	}
	return sb.String()
}
