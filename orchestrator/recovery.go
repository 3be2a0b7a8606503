package orchestrator

import "strings"

// RecoveryPolicy maps a tool name and its prior failure count to a
// RecoveryDecision once the loop detector has flagged a repeated call.
type RecoveryPolicy func(toolName string, priorFailureCount int) RecoveryDecision

// DefaultRecoveryPolicy implements the documented defaults: repo-mutation
// tools skip outright, search tools get Alternative while they have fewer
// than two prior failures (the orchestrator skips a tool after two
// Alternative cycles), project-creation tools get Stop on the first loop,
// everything else skips.
func DefaultRecoveryPolicy(toolName string, priorFailureCount int) RecoveryDecision {
	name := strings.ToLower(toolName)

	switch {
	case containsAny(name, "create_project", "init_project", "scaffold"):
		return Stop

	case containsAny(name, "search", "find", "grep", "query"):
		if priorFailureCount >= 2 {
			return Skip
		}
		return Alternative

	case containsAny(name, "write", "edit", "delete", "remove", "commit", "push", "repository", "repo_"):
		return Skip

	default:
		return Skip
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
