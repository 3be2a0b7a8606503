package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/reasoncore/engine/breaker"
	"github.com/reasoncore/engine/events"
	"github.com/reasoncore/engine/observability"
	"github.com/reasoncore/engine/planner"
	"github.com/reasoncore/engine/resource"
)

// Config holds orchestrator-wide tunables.
type Config struct {
	GlobalTimeout       time.Duration
	DefaultToolTimeout  time.Duration
	MaxToolFailures     int
	MaxIdenticalCalls   int
	EnableRetry         bool
	ResourceWaitTimeout time.Duration
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		GlobalTimeout:       2 * time.Minute,
		DefaultToolTimeout:  30 * time.Second,
		MaxToolFailures:     3,
		MaxIdenticalCalls:   2,
		EnableRetry:         true,
		ResourceWaitTimeout:  resource.DefaultWaitTimeout,
	}
}

// Metrics tracks running averages across every Orchestrate call made by
// one Orchestrator instance.
type Metrics struct {
	mu                     sync.Mutex
	totalOrchestrations    uint64
	successfulOrchestrations uint64
	avgExecutionTime       time.Duration
	avgToolsPerOrchestration float64
	perToolAvg             map[string]time.Duration
	perToolCount           map[string]uint64
}

func newMetrics() *Metrics {
	return &Metrics{perToolAvg: make(map[string]time.Duration), perToolCount: make(map[string]uint64)}
}

func (m *Metrics) record(success bool, duration time.Duration, toolCount int, perTool map[string]time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalOrchestrations++
	if success {
		m.successfulOrchestrations++
	}
	n := float64(m.totalOrchestrations)
	m.avgExecutionTime = time.Duration((float64(m.avgExecutionTime)*(n-1) + float64(duration)) / n)
	m.avgToolsPerOrchestration = (m.avgToolsPerOrchestration*(n-1) + float64(toolCount)) / n

	for tool, d := range perTool {
		m.perToolCount[tool]++
		c := float64(m.perToolCount[tool])
		m.perToolAvg[tool] = time.Duration((float64(m.perToolAvg[tool])*(c-1) + float64(d)) / c)
	}
}

// Snapshot returns a copy of the current running metrics.
func (m *Metrics) Snapshot() (total, successful uint64, avgExecution time.Duration, avgTools float64, perTool map[string]time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make(map[string]time.Duration, len(m.perToolAvg))
	for k, v := range m.perToolAvg {
		cp[k] = v
	}
	return m.totalOrchestrations, m.successfulOrchestrations, m.avgExecutionTime, m.avgToolsPerOrchestration, cp
}

// Orchestrator executes plans for a single reasoning session: its skip
// list, per-tool failure counts, and loop-detection window persist
// across repeated Orchestrate calls on the same instance.
type Orchestrator struct {
	cfg      Config
	resource *resource.Manager
	breaker  *breaker.Breaker
	emitter  *events.Emitter
	recovery RecoveryPolicy

	mu           sync.Mutex
	skipList     map[string]bool
	failureCount map[string]int
	alternatives map[string]int
	window       *loopWindow
	metrics      *Metrics

	tracer *observability.Tracer
	obs    *observability.Metrics
}

// Option configures optional Orchestrator behavior.
type Option func(*Orchestrator)

// WithObservability attaches a tracer and Prometheus metrics recorder.
// tracer may be nil, in which case spans are skipped; obs may be nil, in
// which case Metrics methods are nil-safe no-ops.
func WithObservability(tracer *observability.Tracer, obs *observability.Metrics) Option {
	return func(o *Orchestrator) {
		o.tracer = tracer
		o.obs = obs
	}
}

// New creates an Orchestrator bound to one reasoning session's resource
// manager, breaker, and event emitter.
func New(cfg Config, rm *resource.Manager, b *breaker.Breaker, emitter *events.Emitter, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:          cfg,
		resource:     rm,
		breaker:      b,
		emitter:      emitter,
		recovery:     DefaultRecoveryPolicy,
		skipList:     make(map[string]bool),
		failureCount: make(map[string]int),
		alternatives: make(map[string]int),
		window:       newLoopWindow(),
		metrics:      newMetrics(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Metrics exposes the orchestrator's running averages.
func (o *Orchestrator) Metrics() *Metrics { return o.metrics }

// Orchestrate plans and executes requests, returning an aggregate result.
func (o *Orchestrator) Orchestrate(ctx context.Context, requests []Request, executor Executor) (*OrchestrationResult, error) {
	orchID := uuid.NewString()
	start := time.Now()

	if o.tracer != nil {
		var span trace.Span
		ctx, span = o.tracer.Start(ctx, observability.SpanOrchestration)
		span.SetAttributes(attribute.String(observability.AttrSessionID, orchID))
		defer span.End()
	}

	o.emitter.Emit(events.Event{Kind: events.OrchestrationStarted, SessionID: orchID})

	plannerRequests := make([]planner.Request, 0, len(requests))
	byName := make(map[string]Request, len(requests))
	for _, r := range requests {
		byName[r.ToolName] = r
		plannerRequests = append(plannerRequests, planner.Request{
			ToolName:     r.ToolName,
			Dependencies: r.Dependencies,
			Resources:    toPlannerResources(r.Resources),
			Priority:     r.Priority,
			Timeout:      r.Timeout,
		})
	}

	plan, err := planner.Build(ctx, plannerRequests, o.cfg.DefaultToolTimeout, o.resource.PoolCapacity)
	if err != nil {
		return &OrchestrationResult{
			ID:      orchID,
			Success: false,
			Results: map[string]*Result{},
			Errors:  []string{err.Error()},
		}, err
	}

	ctx, cancel := context.WithTimeout(ctx, o.cfg.GlobalTimeout)
	defer cancel()

	results := make(map[string]*Result, len(requests))
	var resultsMu sync.Mutex

	var orchErrors []string
	timedOut := false

	for _, phase := range plan.Phases {
		if ctx.Err() != nil {
			timedOut = true
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, toolName := range phase.Tools {
			toolName := toolName
			req, ok := byName[toolName]
			if !ok {
				continue
			}
			g.Go(func() error {
				res := o.runOne(gctx, req, executor, results, &resultsMu)
				resultsMu.Lock()
				results[toolName] = res
				resultsMu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			orchErrors = append(orchErrors, err.Error())
		}
		if ctx.Err() != nil {
			timedOut = true
			break
		}
	}

	if timedOut {
		orchErrors = append(orchErrors, "Global orchestration timeout")
		// Per spec: on global timeout, partial results are dropped.
		results = map[string]*Result{}
	}

	successful, failed, skipped := 0, 0, 0
	perToolDuration := make(map[string]time.Duration, len(results))
	for _, res := range results {
		switch res.Status {
		case Completed:
			successful++
		case Failed, Cancelled, TimedOut:
			failed++
		case Skipped:
			skipped++
		}
		perToolDuration[res.Request.ToolName] = res.ExecutionTime
	}

	success := !timedOut && failed == 0 && len(orchErrors) == 0

	o.metrics.record(success, time.Since(start), len(requests), perToolDuration)
	outcome := "completed"
	switch {
	case timedOut:
		outcome = "timed_out"
	case !success:
		outcome = "failed"
	}
	o.obs.RecordOrchestration(outcome, time.Since(start))

	return &OrchestrationResult{
		ID:         orchID,
		Success:    success,
		Results:    results,
		Successful: successful,
		Failed:     failed,
		Skipped:    skipped,
		Plan:       plan,
		Errors:     orchErrors,
	}, nil
}

func toPlannerResources(reqs []resource.Requirement) []planner.Resource {
	out := make([]planner.Resource, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, planner.Resource{Type: r.Type, Amount: r.Amount, Exclusive: r.Exclusive})
	}
	return out
}

// runOne executes a single request's full lifecycle: dependency check,
// skip-list check, loop detection, parameter validation, resource
// allocation, retried execution, and bookkeeping.
func (o *Orchestrator) runOne(ctx context.Context, req Request, executor Executor, priorResults map[string]*Result, mu *sync.Mutex) *Result {
	res := &Result{Request: req, Status: Pending}

	mu.Lock()
	for _, dep := range req.Dependencies {
		depResult, ok := priorResults[dep]
		if !ok || depResult.Status != Completed {
			mu.Unlock()
			res.Status = Skipped
			res.Error = "Dependencies not satisfied"
			return res
		}
	}
	mu.Unlock()

	o.mu.Lock()
	if o.skipList[req.ToolName] {
		o.mu.Unlock()
		res.Status = Skipped
		res.Error = "tool is on the session skip list"
		return res
	}
	o.mu.Unlock()

	if decision := o.checkLoop(req); decision != Proceed {
		switch decision {
		case Skip:
			o.addToSkipList(req.ToolName)
			res.Status = Skipped
			res.Error = "Loop detected: skipping tool " + req.ToolName
			return res
		case Stop:
			res.Status = Failed
			res.Error = "Loop detected on critical tool " + req.ToolName + ": stopping"
			return res
		case Alternative:
			o.mu.Lock()
			o.alternatives[req.ToolName]++
			alt := o.alternatives[req.ToolName]
			o.mu.Unlock()
			if alt > 2 {
				o.addToSkipList(req.ToolName)
				res.Status = Skipped
				res.Error = "Loop detected: exhausted alternative cycles for " + req.ToolName
				return res
			}
			// allow the call, but it counts as a failure.
			o.recordFailure(req.ToolName)
		case Retry:
			// single grace pass with warning; fall through to normal execution.
		}
	}

	if err := validateParams(req.Schema, req.Args); err != nil {
		res.Status = Failed
		res.Error = err.Error()
		o.recordFailure(req.ToolName)
		return res
	}

	alloc, waitTime, err := o.allocate(ctx, req)
	if err != nil {
		res.Status = Failed
		res.Error = err.Error()
		res.WaitTime = waitTime
		return res
	}
	res.WaitTime = waitTime
	if alloc != nil {
		defer o.resource.Release(alloc)
	}

	o.emitter.Emit(events.Event{Kind: events.ToolExecutionStarted, Payload: map[string]interface{}{"tool_name": req.ToolName, "tool_args": req.Args}})

	if o.tracer != nil {
		var span trace.Span
		ctx, span = o.tracer.Start(ctx, observability.SpanToolExecution)
		span.SetAttributes(attribute.String(observability.AttrToolName, req.ToolName))
		defer span.End()
	}

	retryPolicy := DefaultRetryPolicy()
	if req.RetryPolicy != nil {
		retryPolicy = *req.RetryPolicy
	}
	if !o.cfg.EnableRetry {
		retryPolicy.MaxAttempts = 1
	}

	timeout := o.cfg.DefaultToolTimeout
	if req.Timeout != nil {
		timeout = *req.Timeout
	}

	var lastErr error
	execStart := time.Now()
	for attempt := 1; attempt <= retryPolicy.MaxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		tr, execErr := executor.Execute(callCtx, req.ToolName, req.Args)
		cancel()

		res.RetryAttempts = attempt

		if execErr == nil && tr.Success {
			res.Status = Completed
			res.Success = true
			res.Data = tr.Data
			res.ExecutionTime = time.Since(execStart)
			o.resetFailures(req.ToolName)
			o.emitter.Emit(events.Event{Kind: events.ToolExecutionCompleted, Payload: map[string]interface{}{"tool_name": req.ToolName, "success": true, "duration_ms": tr.ExecutionTimeMs}})
			o.obs.RecordToolCall(req.ToolName, "success", res.ExecutionTime)
			return res
		}

		if execErr != nil {
			lastErr = execErr
		} else {
			lastErr = fmt.Errorf("%s", tr.Error)
			res.Error = tr.Error
		}

		category := classifyFailure(callCtx, execErr)
		o.breaker.RecordFailure(category)

		if attempt == retryPolicy.MaxAttempts || !retryPolicy.allows(category) {
			break
		}
		select {
		case <-time.After(retryPolicy.delayFor(attempt)):
		case <-ctx.Done():
			lastErr = ctx.Err()
			attempt = retryPolicy.MaxAttempts
		}
	}

	res.ExecutionTime = time.Since(execStart)
	res.Success = false
	if ctx.Err() == context.DeadlineExceeded {
		res.Status = TimedOut
	} else {
		res.Status = Failed
	}
	if res.Error == "" && lastErr != nil {
		res.Error = lastErr.Error()
	}
	o.recordFailure(req.ToolName)
	o.emitter.Emit(events.Event{Kind: events.ToolExecutionCompleted, Payload: map[string]interface{}{"tool_name": req.ToolName, "success": false, "error": res.Error}})
	o.obs.RecordToolCall(req.ToolName, "failure", res.ExecutionTime)
	o.obs.RecordToolError(req.ToolName, string(classifyFailure(ctx, lastErr)))
	return res
}

func (o *Orchestrator) allocate(ctx context.Context, req Request) (*resource.Allocated, time.Duration, error) {
	if len(req.Resources) == 0 {
		return nil, 0, nil
	}
	start := time.Now()
	alloc, err := o.resource.Allocate(ctx, req.Resources, req.Priority, req.ID)
	return alloc, time.Since(start), err
}

func (o *Orchestrator) checkLoop(req Request) RecoveryDecision {
	count := o.window.countRecent(req.ToolName, req.Args)
	o.window.record(req.ToolName, req.Args)

	if count < o.cfg.MaxIdenticalCalls {
		return Proceed
	}

	o.mu.Lock()
	failures := o.failureCount[req.ToolName]
	o.mu.Unlock()

	decision := o.recovery(req.ToolName, failures)
	if req.Critical && decision != Skip {
		return Stop
	}
	return decision
}

func (o *Orchestrator) addToSkipList(toolName string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.skipList[toolName] = true
}

func (o *Orchestrator) recordFailure(toolName string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failureCount[toolName]++
	if o.failureCount[toolName] >= o.cfg.MaxToolFailures {
		o.skipList[toolName] = true
	}
}

func (o *Orchestrator) resetFailures(toolName string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failureCount[toolName] = 0
}

// classifyFailure maps an execution error (and context state) to a
// breaker.Category for circuit-breaker bookkeeping.
func classifyFailure(ctx context.Context, err error) breaker.Category {
	if ctx.Err() == context.DeadlineExceeded {
		return breaker.Timeout
	}
	if err == nil {
		return breaker.Unknown
	}
	var execErr *ToolExecutionError
	if ok := asToolExecutionError(err, &execErr); ok {
		return breaker.Dependency
	}
	return breaker.Network
}

func asToolExecutionError(err error, target **ToolExecutionError) bool {
	if e, ok := err.(*ToolExecutionError); ok {
		*target = e
		return true
	}
	return false
}
