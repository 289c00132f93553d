package contract

import "time"

// Role tags an entry in the turn transcript.
type Role string

const (
	RoleUser         Role = "user"
	RoleAssistant    Role = "assistant"
	RoleActionResult Role = "action_result"
)

// ActionRequest is one action the oracle asked the controller to run.
type ActionRequest struct {
	CallID string         `json:"call_id,omitempty"`
	Action string         `json:"action"`
	Args   map[string]any `json:"args,omitempty"`
}

// Message is one entry in the append-only turn transcript. Assistant
// messages may carry action requests; action-result messages carry the
// textual outcome of a single executed action.
type Message struct {
	Role      Role            `json:"role"`
	Content   string          `json:"content,omitempty"`
	Action    string          `json:"action,omitempty"`
	CallID    string          `json:"call_id,omitempty"`
	Actions   []ActionRequest `json:"actions,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// HasActions reports whether this is an assistant message that still
// requires action execution.
func (m Message) HasActions() bool {
	return m.Role == RoleAssistant && len(m.Actions) > 0
}

// DecideRequest is the oracle invocation payload: the ordered history plus
// the customer identity the oracle needs for session-scoped actions.
type DecideRequest struct {
	CustomerID string    `json:"customer_id"`
	Messages   []Message `json:"messages"`
}

type EventType string

const (
	EventTypeReasoning        EventType = "reasoning"
	EventTypeAssistantMessage EventType = "assistant_message"
	EventTypeActionResult     EventType = "action_result"
	EventTypeTurnCompleted    EventType = "turn_completed"
	EventTypeTurnFailed       EventType = "turn_failed"
)

// Event is one step-machine transition surfaced to presentation
// collaborators. Events within a turn are ordered; consumption may be eager
// or lazy.
type Event struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	Cycle       int       `json:"cycle"`
	Type        EventType `json:"type"`
	Action      string    `json:"action,omitempty"`
	Message     *Message  `json:"message,omitempty"`
	Description string    `json:"description,omitempty"`
}
