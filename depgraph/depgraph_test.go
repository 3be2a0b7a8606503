package depgraph

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTopologicalOrderChain(t *testing.T) {
	g, err := Build([]Request{
		{ToolName: "A"},
		{ToolName: "B", Dependencies: []string{"A"}},
		{ToolName: "C", Dependencies: []string{"B"}},
	})
	require.NoError(t, err)

	order, err := g.TopologicalOrder()
	require.NoError(t, err)
	require.Equal(t, []string{"A", "B", "C"}, order)
}

func TestCriticalPathLongestChain(t *testing.T) {
	g, err := Build([]Request{
		{ToolName: "A"},
		{ToolName: "B", Dependencies: []string{"A"}},
		{ToolName: "C", Dependencies: []string{"B"}},
		{ToolName: "D"},
	})
	require.NoError(t, err)

	path, err := g.CriticalPath()
	require.NoError(t, err)
	require.Equal(t, []string{"C", "B", "A"}, path)
}

func TestCycleRejected(t *testing.T) {
	g, err := Build([]Request{
		{ToolName: "A", Dependencies: []string{"B"}},
		{ToolName: "B", Dependencies: []string{"A"}},
	})
	require.NoError(t, err)

	_, err = g.TopologicalOrder()
	require.Error(t, err)
	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	require.Equal(t, []string{"A", "B"}, gerr.Nodes)
}

func TestDependencyOnMissingToolRejected(t *testing.T) {
	_, err := Build([]Request{
		{ToolName: "A", Dependencies: []string{"ghost"}},
	})
	require.Error(t, err)
}
