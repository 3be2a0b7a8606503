package planner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBuildPhasesRespectDependencies(t *testing.T) {
	plan, err := Build(context.Background(), []Request{
		{ToolName: "A"},
		{ToolName: "B", Dependencies: []string{"A"}},
		{ToolName: "C", Dependencies: []string{"B"}},
	}, 30*time.Second, nil)
	require.NoError(t, err)
	require.Len(t, plan.Phases, 3)
	require.Equal(t, []string{"A"}, plan.Phases[0].Tools)
	require.Equal(t, []string{"B"}, plan.Phases[1].Tools)
	require.Equal(t, []string{"C"}, plan.Phases[2].Tools)
}

func TestBuildPhaseUnionCoversAllRequestsDisjointly(t *testing.T) {
	plan, err := Build(context.Background(), []Request{
		{ToolName: "A"},
		{ToolName: "B"},
		{ToolName: "C", Dependencies: []string{"A", "B"}},
	}, 30*time.Second, nil)
	require.NoError(t, err)

	seen := map[string]int{}
	for i, ph := range plan.Phases {
		for _, tool := range ph.Tools {
			seen[tool] = i
		}
	}
	require.Len(t, seen, 3)
	require.Less(t, seen["A"], seen["C"])
	require.Less(t, seen["B"], seen["C"])
}

func TestBuildPhasePriorityOrdering(t *testing.T) {
	plan, err := Build(context.Background(), []Request{
		{ToolName: "low", Priority: 0.1},
		{ToolName: "high", Priority: 0.9},
	}, 30*time.Second, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"high", "low"}, plan.Phases[0].Tools)
}

func TestBuildResourceConflictWarning(t *testing.T) {
	plan, err := Build(context.Background(), []Request{
		{ToolName: "A", Resources: []Resource{{Type: "api_quota", Amount: 5}}},
		{ToolName: "B", Resources: []Resource{{Type: "api_quota", Amount: 5}}},
	}, 30*time.Second, func(resourceType string) (uint32, bool) {
		if resourceType == "api_quota" {
			return 8, true
		}
		return 0, false
	})
	require.NoError(t, err)
	require.NotEmpty(t, plan.ResourceWarnings)
}

func TestBuildCyclePropagates(t *testing.T) {
	_, err := Build(context.Background(), []Request{
		{ToolName: "A", Dependencies: []string{"B"}},
		{ToolName: "B", Dependencies: []string{"A"}},
	}, 30*time.Second, nil)
	require.Error(t, err)
}
