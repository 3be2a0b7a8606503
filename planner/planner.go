// Package planner groups a batch of tool-execution requests into
// concurrency-safe phases using the dependency graph and resource
// requirements of each request.
package planner

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/reasoncore/engine/depgraph"
)

// Budget bounds whole-plan construction; exceeding it returns PlanningTimeout.
const Budget = 10 * time.Second

// Error represents a planning failure.
type Error struct {
	Action  string
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("planner: %s: %s", e.Action, e.Message) }

// ErrPlanningTimeout is wrapped when plan construction exceeds Budget.
var ErrPlanningTimeout = fmt.Errorf("PlanningTimeout")

// Resource mirrors resource.Requirement without importing the resource
// package, keeping planner decoupled from allocation mechanics.
type Resource struct {
	Type      string
	Amount    uint32
	Exclusive bool
}

// Request is the planner's view of a tool-execution request.
type Request struct {
	ToolName     string
	Dependencies []string
	Resources    []Resource
	Priority     float64
	Timeout      *time.Duration
}

// Phase is a set of tool names that may run concurrently because every
// dependency of every tool in the phase is satisfied by prior phases.
type Phase struct {
	Tools            []string // descending priority order, for logging stability
	EstimatedMax     time.Duration
	ResourceDemand   map[string]uint32
}

// Plan is an ordered sequence of phases plus the batch's critical path.
type Plan struct {
	ID               string
	Phases           []Phase
	CriticalPath     []string
	ResourceWarnings []string
}

// Build groups requests into phases. defaultTimeout is applied to any
// request that did not set its own timeout, for phase-duration estimation.
// poolCapacity looks up a pool's capacity by resource type; a nil or
// zero-value lookup is treated as "unbounded" (no ResourceConflict warning
// emitted for that type).
func Build(ctx context.Context, requests []Request, defaultTimeout time.Duration, poolCapacity func(resourceType string) (uint32, bool)) (*Plan, error) {
	deadline := time.Now().Add(Budget)

	byName := make(map[string]Request, len(requests))
	graphRequests := make([]depgraph.Request, 0, len(requests))
	for _, r := range requests {
		byName[r.ToolName] = r
		graphRequests = append(graphRequests, depgraph.Request{ToolName: r.ToolName, Dependencies: r.Dependencies})
	}

	g, err := depgraph.Build(graphRequests)
	if err != nil {
		return nil, err
	}

	order, err := g.TopologicalOrder()
	if err != nil {
		return nil, err
	}

	if time.Now().After(deadline) {
		return nil, &Error{Action: "Build", Message: ErrPlanningTimeout.Error()}
	}

	phaseOf := make(map[string]int, len(order))
	var phases []Phase

	for _, name := range order {
		if time.Now().After(deadline) {
			return nil, &Error{Action: "Build", Message: ErrPlanningTimeout.Error()}
		}
		maxDepPhase := -1
		for _, dep := range g.DependenciesOf(name) {
			if phaseOf[dep] > maxDepPhase {
				maxDepPhase = phaseOf[dep]
			}
		}
		p := maxDepPhase + 1
		phaseOf[name] = p
		for len(phases) <= p {
			phases = append(phases, Phase{ResourceDemand: make(map[string]uint32)})
		}
		phases[p].Tools = append(phases[p].Tools, name)
	}

	var warnings []string
	for i := range phases {
		ph := &phases[i]
		sort.Slice(ph.Tools, func(a, b int) bool {
			ra, rb := byName[ph.Tools[a]], byName[ph.Tools[b]]
			if ra.Priority != rb.Priority {
				return ra.Priority > rb.Priority
			}
			return ph.Tools[a] < ph.Tools[b]
		})

		var maxDur time.Duration
		for _, name := range ph.Tools {
			req := byName[name]
			dur := defaultTimeout
			if req.Timeout != nil {
				dur = *req.Timeout
			}
			if dur > maxDur {
				maxDur = dur
			}
			for _, res := range req.Resources {
				ph.ResourceDemand[res.Type] += res.Amount
			}
		}
		ph.EstimatedMax = maxDur

		if poolCapacity != nil {
			for resType, demand := range ph.ResourceDemand {
				if capacity, ok := poolCapacity(resType); ok && demand > capacity {
					warnings = append(warnings, fmt.Sprintf("phase %d: peak demand %d for resource %q exceeds pool capacity %d", i, demand, resType, capacity))
				}
			}
		}
	}

	criticalPath, err := g.CriticalPath()
	if err != nil {
		return nil, err
	}

	return &Plan{
		ID:               uuid.NewString(),
		Phases:           phases,
		CriticalPath:     criticalPath,
		ResourceWarnings: warnings,
	}, nil
}
