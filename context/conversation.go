// Package context implements the reasoning loop's conversation history: a
// mutex-guarded sequence of role-tagged messages passed by reference to the
// model client. Messages are appended; once MaxMessages is exceeded the
// oldest are dropped.
package context

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// ============================================================================
// CONVERSATION CONSTANTS AND CONFIGURATION
// ============================================================================

const (
	// MinMaxMessages is the minimum allowed max messages
	MinMaxMessages = 1

	// MaxMaxMessages is the maximum allowed max messages
	MaxMaxMessages = 10000

	// DefaultMaxMessages is the default maximum number of messages
	DefaultMaxMessages = 1000
)

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// ============================================================================
// CONVERSATION ERRORS - STANDARDIZED ERROR TYPES
// ============================================================================

// ConversationError represents errors in conversation operations
type ConversationError struct {
	SessionID string
	Operation string
	Message   string
	Err       error
	Timestamp time.Time
}

func (e *ConversationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.SessionID, e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s:%s] %s", e.SessionID, e.Operation, e.Message)
}

func (e *ConversationError) Unwrap() error {
	return e.Err
}

// NewConversationError creates a new conversation error
func NewConversationError(sessionID, operation, message string, err error) *ConversationError {
	return &ConversationError{
		SessionID: sessionID,
		Operation: operation,
		Message:   message,
		Err:       err,
		Timestamp: time.Now(),
	}
}

// ============================================================================
// MESSAGE PARTS
// ============================================================================

// PartKind discriminates the closed set of part variants a Message carries.
type PartKind string

const (
	PartText       PartKind = "text"
	PartToolCall   PartKind = "tool_call"
	PartToolResult PartKind = "tool_result"
)

// Part is one unit of a message's content: free text, a tool call the
// model requested, or the result of one that was executed.
type Part struct {
	Kind PartKind

	// Text
	Text string

	// ToolCall / ToolResult share an id and tool name
	ToolCallID string
	ToolName   string

	// ToolCall
	ToolArgs map[string]interface{}

	// ToolResult
	ToolResult interface{}
}

// TextPart builds a text Part.
func TextPart(text string) Part { return Part{Kind: PartText, Text: text} }

// ToolCallPart builds a tool-call Part.
func ToolCallPart(id, name string, args map[string]interface{}) Part {
	return Part{Kind: PartToolCall, ToolCallID: id, ToolName: name, ToolArgs: args}
}

// ToolResultPart builds a tool-result Part.
func ToolResultPart(id, name string, result interface{}) Part {
	return Part{Kind: PartToolResult, ToolCallID: id, ToolName: name, ToolResult: result}
}

// ============================================================================
// CONVERSATION TYPES AND STRUCTURES
// ============================================================================

// Message represents a single message in the conversation.
type Message struct {
	ID        string                 `json:"id"`
	Role      string                 `json:"role"`
	Parts     []Part                 `json:"parts"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Text concatenates every Text part of the message, the common case of a
// single-part assistant or user turn.
func (m Message) Text() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Kind == PartText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// ConversationHistory manages conversation state and history with enhanced features
type ConversationHistory struct {
	mu          sync.RWMutex
	SessionID   string                 `json:"session_id"`
	Messages    []Message              `json:"messages"`
	Context     map[string]interface{} `json:"context"`
	LastUpdated time.Time              `json:"last_updated"`
	MaxMessages int                    `json:"max_messages"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// ConversationStats represents statistics about a conversation
type ConversationStats struct {
	SessionID         string    `json:"session_id"`
	MessageCount      int       `json:"message_count"`
	UserMessages      int       `json:"user_messages"`
	AssistantMessages int       `json:"assistant_messages"`
	SystemMessages    int       `json:"system_messages"`
	ToolMessages      int       `json:"tool_messages"`
	CreatedAt         time.Time `json:"created_at"`
	LastUpdated       time.Time `json:"last_updated"`
	MaxMessages       int       `json:"max_messages"`
}

// ============================================================================
// CONVERSATION HISTORY - CONSTRUCTORS
// ============================================================================

// NewConversationHistory creates a new conversation history with validation
func NewConversationHistory(sessionID string) (*ConversationHistory, error) {
	return NewConversationHistoryWithMax(sessionID, DefaultMaxMessages)
}

// NewConversationHistoryWithMax creates a new conversation history with custom max messages
func NewConversationHistoryWithMax(sessionID string, maxMessages int) (*ConversationHistory, error) {
	if sessionID == "" {
		return nil, NewConversationError("", "NewConversationHistory", "session ID is required", nil)
	}
	if maxMessages < MinMaxMessages || maxMessages > MaxMaxMessages {
		return nil, NewConversationError(sessionID, "NewConversationHistory", "invalid max messages", nil)
	}

	now := time.Now()
	return &ConversationHistory{
		SessionID:   sessionID,
		Messages:    make([]Message, 0),
		Context:     make(map[string]interface{}),
		LastUpdated: now,
		MaxMessages: maxMessages,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// ============================================================================
// MESSAGE MANAGEMENT
// ============================================================================

// AddMessage appends a message with the given role and parts.
func (ch *ConversationHistory) AddMessage(role string, parts []Part, metadata map[string]interface{}) (*Message, error) {
	if err := ch.validateMessageInputs(role, parts); err != nil {
		return nil, err
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()

	message := Message{
		ID:        ch.generateMessageID(),
		Role:      role,
		Parts:     parts,
		Timestamp: time.Now(),
		Metadata:  ch.prepareMetadata(metadata),
	}

	ch.Messages = append(ch.Messages, message)
	ch.trimMessagesIfNeeded()
	ch.updateTimestamps()

	return &message, nil
}

// AddText is a convenience wrapper for the common single-text-part message.
func (ch *ConversationHistory) AddText(role, text string, metadata map[string]interface{}) (*Message, error) {
	return ch.AddMessage(role, []Part{TextPart(text)}, metadata)
}

// AddUserText adds a user-role text message.
func (ch *ConversationHistory) AddUserText(text string, metadata map[string]interface{}) (*Message, error) {
	return ch.AddText(RoleUser, text, metadata)
}

// AddAssistantText adds an assistant-role text message.
func (ch *ConversationHistory) AddAssistantText(text string, metadata map[string]interface{}) (*Message, error) {
	return ch.AddText(RoleAssistant, text, metadata)
}

// AddSystemText adds a system-role text message.
func (ch *ConversationHistory) AddSystemText(text string, metadata map[string]interface{}) (*Message, error) {
	return ch.AddText(RoleSystem, text, metadata)
}

// ============================================================================
// MESSAGE RETRIEVAL
// ============================================================================

// GetRecentMessages returns the last N messages with validation
func (ch *ConversationHistory) GetRecentMessages(n int) []Message {
	ch.mu.RLock()
	defer ch.mu.RUnlock()

	if n <= 0 || len(ch.Messages) == 0 {
		return []Message{}
	}

	start := len(ch.Messages) - n
	if start < 0 {
		start = 0
	}

	messages := make([]Message, len(ch.Messages[start:]))
	copy(messages, ch.Messages[start:])
	return messages
}

// All returns every message, oldest first, as an immutable snapshot.
func (ch *ConversationHistory) All() []Message {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	out := make([]Message, len(ch.Messages))
	copy(out, ch.Messages)
	return out
}

// LastAssistantText returns the text of the most recent assistant-role
// message, used by the reasoning loop's intent-analysis dedup check.
func (ch *ConversationHistory) LastAssistantText() (string, bool) {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	for i := len(ch.Messages) - 1; i >= 0; i-- {
		if ch.Messages[i].Role == RoleAssistant {
			return ch.Messages[i].Text(), true
		}
	}
	return "", false
}

// GetMessagesByRole returns messages filtered by role
func (ch *ConversationHistory) GetMessagesByRole(role string, limit int) []Message {
	ch.mu.RLock()
	defer ch.mu.RUnlock()

	var filtered []Message
	count := 0

	for i := len(ch.Messages) - 1; i >= 0 && (limit <= 0 || count < limit); i-- {
		if ch.Messages[i].Role == role {
			filtered = append([]Message{ch.Messages[i]}, filtered...)
			count++
		}
	}

	return filtered
}

// ============================================================================
// CONTEXT MANAGEMENT
// ============================================================================

// SetContext sets conversation context with validation
func (ch *ConversationHistory) SetContext(key string, value interface{}) error {
	if key == "" {
		return NewConversationError(ch.SessionID, "SetContext", "context key cannot be empty", nil)
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()

	ch.Context[key] = value
	ch.updateTimestamps()

	return nil
}

// GetContext gets conversation context
func (ch *ConversationHistory) GetContext(key string) (interface{}, bool) {
	ch.mu.RLock()
	defer ch.mu.RUnlock()

	value, exists := ch.Context[key]
	return value, exists
}

// ============================================================================
// CONFIGURATION AND MANAGEMENT
// ============================================================================

// GetMaxMessages returns the current maximum number of messages
func (ch *ConversationHistory) GetMaxMessages() int {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	return ch.MaxMessages
}

// ============================================================================
// STATISTICS AND MONITORING
// ============================================================================

// GetStats returns detailed conversation statistics
func (ch *ConversationHistory) GetStats() *ConversationStats {
	ch.mu.RLock()
	defer ch.mu.RUnlock()

	stats := &ConversationStats{
		SessionID:    ch.SessionID,
		MessageCount: len(ch.Messages),
		CreatedAt:    ch.CreatedAt,
		LastUpdated:  ch.UpdatedAt,
		MaxMessages:  ch.MaxMessages,
	}

	for _, msg := range ch.Messages {
		switch msg.Role {
		case RoleUser:
			stats.UserMessages++
		case RoleAssistant:
			stats.AssistantMessages++
		case RoleSystem:
			stats.SystemMessages++
		case RoleTool:
			stats.ToolMessages++
		}
	}

	return stats
}

// GetMessageCount returns the current number of messages
func (ch *ConversationHistory) GetMessageCount() int {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	return len(ch.Messages)
}

// ============================================================================
// VALIDATION AND HELPER METHODS
// ============================================================================

func (ch *ConversationHistory) validateMessageInputs(role string, parts []Part) error {
	switch role {
	case RoleUser, RoleAssistant, RoleSystem, RoleTool:
	default:
		return NewConversationError(ch.SessionID, "validateMessageInputs", "invalid role", nil)
	}
	if len(parts) == 0 {
		return NewConversationError(ch.SessionID, "validateMessageInputs", "message must have at least one part", nil)
	}
	return nil
}

// trimMessagesIfNeeded trims messages if they exceed the limit
func (ch *ConversationHistory) trimMessagesIfNeeded() {
	if len(ch.Messages) > ch.MaxMessages {
		ch.Messages = ch.Messages[len(ch.Messages)-ch.MaxMessages:]
	}
}

// updateTimestamps updates the timestamps
func (ch *ConversationHistory) updateTimestamps() {
	now := time.Now()
	ch.LastUpdated = now
	ch.UpdatedAt = now
}

// prepareMetadata prepares metadata for a message
func (ch *ConversationHistory) prepareMetadata(metadata map[string]interface{}) map[string]interface{} {
	if metadata == nil {
		return make(map[string]interface{})
	}
	prepared := make(map[string]interface{})
	for k, v := range metadata {
		prepared[k] = v
	}
	return prepared
}

// generateMessageID generates a unique message ID
func (ch *ConversationHistory) generateMessageID() string {
	return fmt.Sprintf("msg_%s_%d", ch.SessionID, time.Now().UnixNano())
}
