package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/reasoncore/engine/breaker"
	"github.com/reasoncore/engine/events"
	"github.com/reasoncore/engine/resource"
)

type fakeExecutor struct {
	mu       sync.Mutex
	calls    int
	behavior func(name string, args map[string]interface{}, call int) (ToolResult, error)
}

func (f *fakeExecutor) Execute(ctx context.Context, name string, args map[string]interface{}) (ToolResult, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()
	return f.behavior(name, args, call)
}

func (f *fakeExecutor) AvailableTools() []ToolInfo { return nil }

func alwaysSucceeds(delay time.Duration) *fakeExecutor {
	return &fakeExecutor{behavior: func(name string, args map[string]interface{}, call int) (ToolResult, error) {
		time.Sleep(delay)
		return ToolResult{Success: true, Data: map[string]interface{}{"name": name}}, nil
	}}
}

func newOrchestrator() *Orchestrator {
	rm := resource.NewManager(nil)
	return New(DefaultConfig(), rm, breaker.New(), events.NewEmitter())
}

func TestHappyPathSingleTool(t *testing.T) {
	o := newOrchestrator()
	exec := alwaysSucceeds(10 * time.Millisecond)

	result, err := o.Orchestrate(context.Background(), []Request{
		{ID: "r1", ToolName: "T1", Args: map[string]interface{}{"a": 1}},
	}, exec)

	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, 1, result.Successful)
	require.Len(t, result.Plan.Phases, 1)
	require.Equal(t, []string{"T1"}, result.Plan.Phases[0].Tools)
}

func TestDependencyChainExecutesInPhaseOrder(t *testing.T) {
	o := newOrchestrator()
	exec := alwaysSucceeds(0)

	result, err := o.Orchestrate(context.Background(), []Request{
		{ID: "a", ToolName: "A"},
		{ID: "b", ToolName: "B", Dependencies: []string{"A"}},
		{ID: "c", ToolName: "C", Dependencies: []string{"B"}},
	}, exec)

	require.NoError(t, err)
	require.True(t, result.Success)
	require.Len(t, result.Plan.Phases, 3)
	require.Equal(t, 0, result.Skipped)
}

func TestFailurePropagatesAsSkip(t *testing.T) {
	o := newOrchestrator()
	exec := &fakeExecutor{behavior: func(name string, args map[string]interface{}, call int) (ToolResult, error) {
		if name == "A" {
			return ToolResult{Success: false, Error: "boom"}, nil
		}
		return ToolResult{Success: true}, nil
	}}

	result, err := o.Orchestrate(context.Background(), []Request{
		{ID: "a", ToolName: "A", RetryPolicy: &RetryPolicy{MaxAttempts: 1}},
		{ID: "b", ToolName: "B", Dependencies: []string{"A"}},
		{ID: "c", ToolName: "C"},
	}, exec)

	require.NoError(t, err)
	require.False(t, result.Success)
	require.Equal(t, 1, result.Failed)
	require.Equal(t, 1, result.Skipped)
	require.Equal(t, 1, result.Successful)
	require.Equal(t, Skipped, result.Results["B"].Status)
	require.Equal(t, "Dependencies not satisfied", result.Results["B"].Error)
}

func TestLoopDetectionSkipsOnThirdIdenticalCall(t *testing.T) {
	o := newOrchestrator()
	exec := &fakeExecutor{behavior: func(name string, args map[string]interface{}, call int) (ToolResult, error) {
		return ToolResult{Success: false, Error: "always fails"}, nil
	}}

	args := map[string]interface{}{"x": "y"}
	var last *OrchestrationResult
	for i := 0; i < 3; i++ {
		result, err := o.Orchestrate(context.Background(), []Request{
			{ID: "r", ToolName: "add_repository", Args: args, RetryPolicy: &RetryPolicy{MaxAttempts: 1}},
		}, exec)
		require.NoError(t, err)
		last = result
	}

	require.Equal(t, Skipped, last.Results["add_repository"].Status)
}

func TestGlobalTimeoutDropsPartialResults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GlobalTimeout = 20 * time.Millisecond
	rm := resource.NewManager(nil)
	o := New(cfg, rm, breaker.New(), events.NewEmitter())

	exec := &fakeExecutor{behavior: func(name string, args map[string]interface{}, call int) (ToolResult, error) {
		time.Sleep(200 * time.Millisecond)
		return ToolResult{Success: true}, nil
	}}

	result, err := o.Orchestrate(context.Background(), []Request{
		{ID: "r", ToolName: "T1", Timeout: durPtr(500 * time.Millisecond)},
	}, exec)

	require.NoError(t, err)
	require.False(t, result.Success)
	require.Empty(t, result.Results)
	require.Contains(t, result.Errors, "Global orchestration timeout")
}

func durPtr(d time.Duration) *time.Duration { return &d }
