package state

import (
	"errors"
	"fmt"
	"strings"
	"time"

	contractx "github.com/pearlcafe/barista-agent/agent/contract"
)

var (
	ErrNilTurnState   = errors.New("turn state is nil")
	ErrInvalidSession = errors.New("session id is empty")
	ErrCorruptLog     = errors.New("message log corrupt")
)

// TurnState is the durable unit of conversational memory: the append-only
// message log for one session plus the customer identity used to scope
// order operations. It is checkpointed after every append.
type TurnState struct {
	SessionID  string `json:"session_id"`
	CustomerID string `json:"customer_id"`

	Messages []contractx.Message `json:"messages,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

func NewTurnState(sessionID, customerID string, now time.Time) *TurnState {
	return &TurnState{
		SessionID:  sessionID,
		CustomerID: customerID,
		Messages:   make([]contractx.Message, 0, 8),
		UpdatedAt:  now.UTC(),
	}
}

func (s *TurnState) Touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}

/* ----------------------------- Append helpers ---------------------------- */

// AppendUser records a new external input.
func (s *TurnState) AppendUser(text string, now time.Time) {
	s.Messages = append(s.Messages, contractx.Message{
		Role:      contractx.RoleUser,
		Content:   text,
		CreatedAt: now.UTC(),
	})
	s.Touch(now)
}

// AppendAssistant records the oracle's message verbatim, including any
// action requests it carries.
func (s *TurnState) AppendAssistant(msg contractx.Message, now time.Time) {
	msg.Role = contractx.RoleAssistant
	msg.CreatedAt = now.UTC()
	s.Messages = append(s.Messages, msg)
	s.Touch(now)
}

// AppendActionResult records the textual outcome of one executed action.
func (s *TurnState) AppendActionResult(action, callID, result string, now time.Time) {
	s.Messages = append(s.Messages, contractx.Message{
		Role:      contractx.RoleActionResult,
		Action:    action,
		CallID:    callID,
		Content:   result,
		CreatedAt: now.UTC(),
	})
	s.Touch(now)
}

/* ------------------------------- Inspection ------------------------------ */

// LastMessage returns the most recent message, or nil for an empty log.
func (s *TurnState) LastMessage() *contractx.Message {
	if s == nil || len(s.Messages) == 0 {
		return nil
	}
	return &s.Messages[len(s.Messages)-1]
}

// AwaitingActions reports whether the last checkpoint left the turn with
// assistant-requested actions still to execute. Recovery resumes in the
// acting step when true, in the reasoning step otherwise.
func (s *TurnState) AwaitingActions() bool {
	// A trailing action result still counts as awaiting while any request of
	// the batch has no recorded result.
	return len(s.PendingActions()) > 0
}

// PendingActions returns the action requests of the last assistant message
// that have no recorded result yet, preserving the requested order.
func (s *TurnState) PendingActions() []contractx.ActionRequest {
	var assistant *contractx.Message
	resolved := make(map[string]int)
	for i := len(s.Messages) - 1; i >= 0; i-- {
		m := &s.Messages[i]
		if m.Role == contractx.RoleActionResult {
			if m.CallID != "" {
				resolved[m.CallID]++
			}
			continue
		}
		if m.Role == contractx.RoleAssistant {
			assistant = m
		}
		break
	}
	if assistant == nil || len(assistant.Actions) == 0 {
		return nil
	}

	pending := make([]contractx.ActionRequest, 0, len(assistant.Actions))
	for _, req := range assistant.Actions {
		// A request without a call id can never be matched to a result, so
		// it is always replayed. Duplicate ids consume one result each.
		if req.CallID != "" && resolved[req.CallID] > 0 {
			resolved[req.CallID]--
			continue
		}
		pending = append(pending, req)
	}
	return pending
}

// Clone returns a deep copy safe for concurrent readers.
func (s *TurnState) Clone() *TurnState {
	if s == nil {
		return nil
	}
	out := *s
	out.Messages = make([]contractx.Message, len(s.Messages))
	for i, m := range s.Messages {
		cp := m
		if m.Actions != nil {
			cp.Actions = make([]contractx.ActionRequest, len(m.Actions))
			for j, a := range m.Actions {
				ac := a
				if a.Args != nil {
					ac.Args = make(map[string]any, len(a.Args))
					for k, v := range a.Args {
						ac.Args[k] = v
					}
				}
				cp.Actions[j] = ac
			}
		}
		out.Messages[i] = cp
	}
	return &out
}

func (s *TurnState) Validate() error {
	if s == nil {
		return ErrNilTurnState
	}
	if strings.TrimSpace(s.SessionID) == "" {
		return ErrInvalidSession
	}
	for i, m := range s.Messages {
		switch m.Role {
		case contractx.RoleUser, contractx.RoleAssistant, contractx.RoleActionResult:
		default:
			return fmt.Errorf("%w: message %d has role %q", ErrCorruptLog, i, m.Role)
		}
		if m.Role != contractx.RoleAssistant && len(m.Actions) > 0 {
			return fmt.Errorf("%w: message %d carries action requests with role %q", ErrCorruptLog, i, m.Role)
		}
		if m.Role == contractx.RoleActionResult && strings.TrimSpace(m.Action) == "" {
			return fmt.Errorf("%w: message %d is an action result without an action name", ErrCorruptLog, i)
		}
	}
	return nil
}
