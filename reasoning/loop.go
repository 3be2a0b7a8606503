package reasoning

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	convctx "github.com/reasoncore/engine/context"
	"github.com/reasoncore/engine/events"
	"github.com/reasoncore/engine/intent"
	"github.com/reasoncore/engine/llms"
	"github.com/reasoncore/engine/orchestrator"
	"github.com/reasoncore/engine/streaming"
)

// modelStreamKind tags every model-turn stream registered with the
// streaming engine.
const modelStreamKind streaming.Kind = "model"

// Loop wires the four external collaborators (model client, tool
// orchestrator, event emitter, UI stream handler) plus the intent oracle
// into the procedure from spec.md §4.8.
type Loop struct {
	cfg          Config
	llm          llms.LLMProvider
	orchestrator *orchestrator.Orchestrator
	executor     orchestrator.Executor
	emitter      *events.Emitter
	stream       *streaming.Engine
	handler      StreamHandler
	analyzer     intent.Analyzer
}

// NewLoop builds a Loop from its collaborators. handler may be
// NopStreamHandler{} for callers that only consume the returned Session
// and emitted events.
func NewLoop(cfg Config, llm llms.LLMProvider, orch *orchestrator.Orchestrator, executor orchestrator.Executor, emitter *events.Emitter, stream *streaming.Engine, handler StreamHandler, analyzer intent.Analyzer) *Loop {
	if handler == nil {
		handler = NopStreamHandler{}
	}
	return &Loop{
		cfg:          cfg,
		llm:          llm,
		orchestrator: orch,
		executor:     executor,
		emitter:      emitter,
		stream:       stream,
		handler:      handler,
		analyzer:     analyzer,
	}
}

// Run executes the full reasoning loop against history, which must already
// carry the current user turn as its last message. prev, if non-nil, makes
// this a continuation: its tool-success set, last assistant text, and
// completion reason are folded into a synthesized context message.
//
// History is append-only: the continuation context note is appended as a
// system message ahead of the initial analysis phase rather than spliced
// before the user's turn, since ConversationHistory never reorders or
// mutates prior entries.
func (l *Loop) Run(ctx context.Context, history *convctx.ConversationHistory, inputText string, prev *Session) (*Session, error) {
	session := NewSession(inputText)
	if prev != nil {
		session = NewContinuation(inputText, prev)
	}

	var contextSummary string
	if session.Metadata.IsContinuation {
		contextSummary = session.ContextSummary()
		if contextSummary != "" {
			if _, err := history.AddSystemText(
				"CONVERSATION CONTEXT:\n"+contextSummary+"\nContinuing with the current request...", nil,
			); err != nil {
				return nil, newError("Run", "failed to append continuation context", err)
			}
		}
	}

	l.emitter.Emit(events.Event{
		Kind:      events.SessionStarted,
		SessionID: session.ID,
		Payload:   map[string]interface{}{"input": inputText},
	})

	if !l.runInitialAnalysis(ctx, session, history, inputText, contextSummary) {
		l.emitSessionCompleted(session)
		return session, nil
	}

	for iteration := 0; iteration < l.cfg.MaxIterations; iteration++ {
		cont, err := l.runIteration(ctx, session, history, iteration)
		if err != nil {
			return session, err
		}
		if !cont {
			break
		}
	}

	if session.CompletedAt.IsZero() {
		session.SetCompleted(false, "Max iterations reached")
	}
	l.emitSessionCompleted(session)
	return session, nil
}

func (l *Loop) emitSessionCompleted(session *Session) {
	l.emitter.Emit(events.Event{
		Kind:      events.SessionCompleted,
		SessionID: session.ID,
		Payload: map[string]interface{}{
			"success":           session.Success,
			"total_duration_ms": session.CompletedAt.Sub(session.StartedAt).Milliseconds(),
			"steps_executed":    len(session.History),
			"tools_used":        session.ToolsUsed(),
		},
	})
}

// runInitialAnalysis submits the analyze_input request and appends its
// result to history. Returns false if the session should end here.
func (l *Loop) runInitialAnalysis(ctx context.Context, session *Session, history *convctx.ConversationHistory, inputText, contextSummary string) bool {
	args := map[string]interface{}{"input": inputText}
	if contextSummary != "" {
		args["context"] = contextSummary
	}

	req := orchestrator.Request{ID: uuid.NewString(), ToolName: "analyze_input", Args: args}
	result, err := l.orchestrator.Orchestrate(ctx, []orchestrator.Request{req}, l.executor)
	if err != nil {
		session.SetCompleted(false, "Initial analysis orchestration error: "+err.Error())
		return false
	}

	session.AddStep(Step{
		Type:      "tool_orchestration",
		Label:     "Initial analysis with context",
		Success:   result.Success,
		ToolNames: []string{"analyze_input"},
	})

	if !result.Success {
		session.SetCompleted(false, "Initial analysis failed")
		return false
	}

	res := result.Results["analyze_input"]
	if res == nil {
		session.SetCompleted(false, "Initial analysis failed")
		return false
	}

	session.MarkToolSuccessful("analyze_input")
	payload, _ := json.Marshal(map[string]interface{}{
		"tool_name": "analyze_input",
		"success":   res.Success,
		"data":      res.Data,
		"error":     errField(res.Error),
	})
	if _, err := history.AddUserText(string(payload), nil); err != nil {
		session.SetCompleted(false, "failed to append analysis result: "+err.Error())
		return false
	}
	return true
}

// runIteration runs one pass of the main loop: a model turn, followed by
// either tool execution or intent-driven branching. It returns whether
// the loop should keep iterating.
func (l *Loop) runIteration(ctx context.Context, session *Session, history *convctx.ConversationHistory, iteration int) (bool, error) {
	messages := toLLMMessages(history.All())
	tools := l.toolDefinitions()

	text, toolCalls, streamErr := l.streamModelTurn(ctx, session, messages, tools)

	if text != "" {
		if _, err := history.AddAssistantText(text, nil); err != nil {
			return false, newError("runIteration", "failed to append assistant text", err)
		}
		session.RecordAssistantText(text)
	}

	if streamErr != nil {
		session.AddStep(Step{Type: "llm_interaction", Label: text, Success: false, Error: streamErr.Error()})
		session.SetCompleted(false, "LLM interaction failed")
		return false, nil
	}
	session.AddStep(Step{Type: "llm_interaction", Label: text, Success: true})

	if len(toolCalls) > 0 {
		return l.runToolCalls(ctx, session, history, toolCalls, iteration)
	}
	return l.runIntentBranch(ctx, session, history, text, iteration)
}

// streamModelTurn drives the model's streaming interface, forwarding text
// and tool-call chunks to both the internal streaming engine and the
// external StreamHandler, and emitting TokenUsageReceived for usage
// chunks. Text chunks accumulate into the returned string; tool-call
// chunks accumulate into the returned slice.
func (l *Loop) streamModelTurn(ctx context.Context, session *Session, messages []llms.Message, tools []llms.ToolDefinition) (string, []llms.ToolCall, error) {
	streamID := uuid.NewString()
	if err := l.stream.Start(streamID, modelStreamKind); err != nil {
		return "", nil, err
	}

	ch, err := l.llm.GenerateStreaming(ctx, messages, tools)
	if err != nil {
		l.stream.Terminate(streamID, err.Error())
		_ = l.handler.HandleStreamError(ctx, streamID, err)
		return "", nil, err
	}

	var text string
	var toolCalls []llms.ToolCall

	for chunk := range ch {
		switch chunk.Type {
		case "text":
			text += chunk.Text
			sc := streaming.Chunk{ID: uuid.NewString(), Data: []byte(chunk.Text), Kind: streaming.ChunkText}
			_, _ = l.stream.Process(streamID, sc)
			_ = l.handler.HandleChunk(ctx, sc)
		case "tool_call":
			if chunk.ToolCall != nil {
				toolCalls = append(toolCalls, *chunk.ToolCall)
				data, _ := json.Marshal(chunk.ToolCall)
				sc := streaming.Chunk{ID: uuid.NewString(), Data: data, Kind: streaming.ChunkToolCall}
				_, _ = l.stream.Process(streamID, sc)
				_ = l.handler.HandleChunk(ctx, sc)
			}
		case "done":
			if chunk.Tokens > 0 {
				l.emitter.Emit(events.Event{
					Kind:      events.TokenUsageReceived,
					SessionID: session.ID,
					Payload:   map[string]interface{}{"total_tokens": chunk.Tokens, "model_name": l.llm.GetModelName()},
				})
			}
		case "error":
			l.stream.Terminate(streamID, chunk.Error.Error())
			_ = l.handler.HandleStreamError(ctx, streamID, chunk.Error)
			return text, toolCalls, chunk.Error
		}
	}

	_, _ = l.stream.Complete(streamID)
	_ = l.handler.HandleStreamComplete(ctx, streamID)
	return text, toolCalls, nil
}

// runToolCalls executes the model's requested tool calls, appends their
// results to history as a single user-role message, and synthesizes the
// summary immediately (the corpus's own original_source folds the
// deferred "pending summary" step into an immediate one).
func (l *Loop) runToolCalls(ctx context.Context, session *Session, history *convctx.ConversationHistory, toolCalls []llms.ToolCall, iteration int) (bool, error) {
	requests := make([]orchestrator.Request, 0, len(toolCalls))
	for _, tc := range toolCalls {
		requests = append(requests, orchestrator.Request{ID: uuid.NewString(), ToolName: tc.Name, Args: tc.Arguments})
	}

	result, err := l.orchestrator.Orchestrate(ctx, requests, l.executor)
	if err != nil {
		session.SetCompleted(false, "Tool orchestration error: "+err.Error())
		return false, nil
	}

	actualSuccess := result.Success
	outcomes := make([]ToolOutcome, 0, len(requests))
	toolNames := make([]string, 0, len(requests))
	for _, req := range requests {
		toolNames = append(toolNames, req.ToolName)
		res := result.Results[req.ToolName]
		if res == nil {
			actualSuccess = false
			outcomes = append(outcomes, ToolOutcome{Name: req.ToolName, Success: false, Error: "no result"})
			continue
		}
		if res.Success {
			session.MarkToolSuccessful(req.ToolName)
		} else {
			actualSuccess = false
		}
		data, _ := res.Data.(map[string]interface{})
		outcomes = append(outcomes, ToolOutcome{Name: req.ToolName, Success: res.Success, Data: data, Error: res.Error})
	}

	session.AddStep(Step{
		Type:      "tool_orchestration",
		Label:     fmt.Sprintf("Iteration %d", iteration),
		Success:   actualSuccess,
		ToolNames: toolNames,
	})

	parts := make([]convctx.Part, 0, len(outcomes))
	for i, o := range outcomes {
		payload, _ := json.Marshal(map[string]interface{}{
			"tool_name": o.Name,
			"success":   o.Success,
			"data":      result.Results[requests[i].ToolName].Data,
			"error":     errField(o.Error),
		})
		parts = append(parts, convctx.TextPart(string(payload)))
	}
	if len(parts) > 0 {
		if _, err := history.AddMessage(convctx.RoleUser, parts, nil); err != nil {
			return false, newError("runToolCalls", "failed to append tool results", err)
		}
	}

	if len(outcomes) > 0 {
		summary := Summarize(outcomes)
		l.emitter.Emit(events.Event{Kind: events.Summary, SessionID: session.ID, Text: summary, Payload: map[string]interface{}{"content": summary}})
	}

	return true, nil
}

// runIntentBranch classifies the model's text-only response and decides
// whether to keep iterating, nudge and continue, or end the session.
func (l *Loop) runIntentBranch(ctx context.Context, session *Session, history *convctx.ConversationHistory, text string, iteration int) (bool, error) {
	if text == "" {
		session.SetCompleted(false, "LLM provided no further response or action.")
		return false, nil
	}

	atMaxIteration := iteration == l.cfg.MaxIterations-1

	in, cached := session.cachedIntent(text)
	if !cached {
		var err error
		in, err = l.analyzer.Classify(text, nil)
		if err != nil {
			session.SetCompleted(false, "Intent analysis failed: "+err.Error())
			return false, nil
		}
		session.rememberIntent(text, in)
	}

	switch in {
	case intent.ProvidesFinalAnswer, intent.StatesInabilityToProceed:
		session.SetCompleted(true, fmt.Sprintf("LLM intent (%s) indicates completion.", in))
		return false, nil

	case intent.AsksClarifyingQuestion, intent.RequestsMoreInput, intent.GeneralConversation:
		if _, err := history.AddUserText("What would you like to do next?", nil); err != nil {
			return false, newError("runIntentBranch", "failed to append nudge", err)
		}
		if atMaxIteration {
			success := in == intent.GeneralConversation
			session.SetCompleted(success, "Max iterations reached after conversational turn.")
			return false, nil
		}
		return true, nil

	case intent.ProvidesPlanWithoutExplicitAction:
		if !atMaxIteration {
			if _, err := history.AddUserText(
				"Your plan is noted. Please proceed with the next action by making a tool call, or state completion.", nil,
			); err != nil {
				return false, newError("runIntentBranch", "failed to append nudge", err)
			}
			return true, nil
		}
		session.SetCompleted(false, "Max iterations reached after plan")
		return false, nil

	case intent.Ambiguous:
		session.SetCompleted(false, "LLM response intent ambiguous, requires clarification.")
		return false, nil

	default:
		session.SetCompleted(false, "Ambiguous intent classification result")
		return false, nil
	}
}

func (l *Loop) toolDefinitions() []llms.ToolDefinition {
	infos := l.executor.AvailableTools()
	defs := make([]llms.ToolDefinition, 0, len(infos))
	for _, info := range infos {
		var params map[string]interface{}
		if len(info.Parameters) > 0 {
			_ = json.Unmarshal(info.Parameters, &params)
		}
		defs = append(defs, llms.ToolDefinition{Name: info.Name, Description: info.Description, Parameters: params})
	}
	return defs
}

func toLLMMessages(history []convctx.Message) []llms.Message {
	out := make([]llms.Message, 0, len(history))
	for _, m := range history {
		out = append(out, llms.Message{Role: m.Role, Content: m.Text()})
	}
	return out
}

func errField(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
