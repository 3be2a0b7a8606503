package reasoning

import "fmt"

// Error is the reasoning loop's component-scoped error, following
// context.ConversationError / tools.ToolRegistryError's shape.
type Error struct {
	Component string
	Action    string
	Message   string
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Component, e.Action, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Component, e.Action, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(action, message string, err error) *Error {
	return &Error{Component: "reasoning", Action: action, Message: message, Err: err}
}
