// Package orchestrator executes an Execution Plan with dependency checks,
// resource allocation, per-tool retry, loop detection, and graceful
// skip/stop degradation.
package orchestrator

import (
	"context"
	"time"

	"github.com/reasoncore/engine/breaker"
	"github.com/reasoncore/engine/planner"
	"github.com/reasoncore/engine/resource"
)

// Status is the terminal (or in-flight) state of a single tool request.
type Status string

const (
	Pending   Status = "pending"
	Running   Status = "running"
	Completed Status = "completed"
	Failed    Status = "failed"
	Skipped   Status = "skipped"
	Cancelled Status = "cancelled"
	TimedOut  Status = "timed_out"
)

// RetryPolicy governs per-tool retry behavior on execution failure.
type RetryPolicy struct {
	MaxAttempts         int
	BaseDelay           time.Duration
	MaxDelay            time.Duration
	BackoffMultiplier   float64
	RetryableCategories []breaker.Category // empty means all categories retry
}

// DefaultRetryPolicy mirrors the orchestrator-wide defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       3,
		BaseDelay:         200 * time.Millisecond,
		MaxDelay:          5 * time.Second,
		BackoffMultiplier: 2,
	}
}

func (p RetryPolicy) delayFor(attempt int) time.Duration {
	d := float64(p.BaseDelay) * pow(p.BackoffMultiplier, attempt-1)
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	return time.Duration(d)
}

func (p RetryPolicy) allows(c breaker.Category) bool {
	if len(p.RetryableCategories) == 0 {
		return true
	}
	for _, rc := range p.RetryableCategories {
		if rc == c {
			return true
		}
	}
	return false
}

func pow(base float64, exp int) float64 {
	if exp <= 0 {
		return 1
	}
	r := 1.0
	for i := 0; i < exp; i++ {
		r *= base
	}
	return r
}

// Request is a single tool-execution request submitted to Orchestrate.
type Request struct {
	ID           string
	ToolName     string
	Args         map[string]interface{}
	Dependencies []string
	Resources    []resource.Requirement
	Priority     float64
	Timeout      *time.Duration
	Critical     bool
	RetryPolicy  *RetryPolicy
	Metadata     map[string]interface{}
	// Schema, when non-nil, is validated against Args before execution.
	Schema *ParamSchema
}

// ParamSchema is a JSON-Schema document plus an optional "at least one of"
// constraint over top-level property names, validated in addition to the
// schema itself.
type ParamSchema struct {
	Document    []byte
	AtLeastOneOf []string
}

// Result is the outcome of executing (or skipping) a single Request.
type Result struct {
	Request       Request
	Success       bool
	Data          interface{}
	Error         string
	Status        Status
	RetryAttempts int
	WaitTime      time.Duration
	ExecutionTime time.Duration
	ResourcesHeld []string
}

// OrchestrationResult aggregates the outcome of one Orchestrate call.
type OrchestrationResult struct {
	ID          string
	Success     bool
	Results     map[string]*Result
	Successful  int
	Failed      int
	Skipped     int
	Plan        *planner.Plan
	Errors      []string
}

// ToolResult is what the external executor returns for one invocation.
type ToolResult struct {
	Success         bool
	Data            interface{}
	Error           string
	ExecutionTimeMs uint64
	Metadata        map[string]interface{}
}

// ToolInfo describes one tool the environment's executor exposes.
type ToolInfo struct {
	Name                string
	Description         string
	Parameters          []byte // JSON-Schema document
	IsRequired          bool
	Category            string
	EstimatedDurationMs uint64
}

// ToolExecutionError is returned by Executor.Execute on failure.
type ToolExecutionError struct {
	Name    string
	Message string
}

func (e *ToolExecutionError) Error() string { return e.Name + ": " + e.Message }

// Executor is the external collaborator that actually runs a named tool.
type Executor interface {
	Execute(ctx context.Context, name string, args map[string]interface{}) (ToolResult, error)
	AvailableTools() []ToolInfo
}
