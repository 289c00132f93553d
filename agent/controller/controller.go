package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	contractx "github.com/pearlcafe/barista-agent/agent/contract"
	statex "github.com/pearlcafe/barista-agent/agent/state"
)

const DefaultMaxIterations = 50

var (
	ErrInvalidMessage = errors.New("message is empty")
	ErrInvalidSession = errors.New("session id is empty")
)

type Config struct {
	// CustomerID scopes order operations; falls back to a fixed single
	// customer when empty.
	CustomerID string
	// MaxIterations bounds reasoning/acting cycles per turn.
	MaxIterations int
}

// Controller drives one turn at a time through the reasoning/acting cycle:
// invoke the oracle, execute any requested actions in order, feed the
// results back, and stop on the first action-free assistant message. Every
// transcript append is checkpointed before the next step runs.
type Controller struct {
	store   statex.Store
	oracle  contractx.Oracle
	actions contractx.ActionRegistry
	events  contractx.EventSink

	customerID    string
	maxIterations int

	now func() time.Time

	mu     sync.Mutex
	active map[string]struct{}
}

func New(
	store statex.Store,
	oracle contractx.Oracle,
	actions contractx.ActionRegistry,
	events contractx.EventSink,
	cfg Config,
) (*Controller, error) {
	if store == nil {
		return nil, errors.New("turn store is required")
	}
	if oracle == nil {
		return nil, errors.New("oracle is required")
	}
	if actions == nil {
		return nil, errors.New("action registry is required")
	}
	if events == nil {
		events = noopEventSink{}
	}

	customerID := strings.TrimSpace(cfg.CustomerID)
	if customerID == "" {
		customerID = "single_coffee_customer"
	}
	maxIterations := cfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}

	return &Controller{
		store:         store,
		oracle:        oracle,
		actions:       actions,
		events:        events,
		customerID:    customerID,
		maxIterations: maxIterations,
		now:           time.Now,
		active:        make(map[string]struct{}),
	}, nil
}

// RunTurn processes one external input to completion and returns the
// terminal assistant message. Re-entrant invocation for a session that is
// mid-turn fails with ErrTurnInProgress instead of interleaving state.
func (c *Controller) RunTurn(ctx context.Context, sessionID, text string) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return "", ErrInvalidSession
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrInvalidMessage
	}

	if !c.acquire(sessionID) {
		return "", fmt.Errorf("%w: session %s", contractx.ErrTurnInProgress, sessionID)
	}
	defer c.release(sessionID)

	st, err := c.loadOrCreate(ctx, sessionID)
	if err != nil {
		return "", err
	}

	st.AppendUser(text, c.now())
	if err := c.checkpoint(ctx, st); err != nil {
		return "", err
	}

	return c.runCycles(ctx, st)
}

// Resume continues a turn whose last checkpoint left assistant-requested
// actions unexecuted, e.g. after a process restart. Completed turns resume
// to their existing terminal message without re-running side effects.
func (c *Controller) Resume(ctx context.Context, sessionID string) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return "", ErrInvalidSession
	}

	if !c.acquire(sessionID) {
		return "", fmt.Errorf("%w: session %s", contractx.ErrTurnInProgress, sessionID)
	}
	defer c.release(sessionID)

	st, err := c.store.Load(ctx, sessionID)
	if err != nil {
		return "", err
	}

	if st.AwaitingActions() {
		if err := c.runActions(ctx, st, 0, st.PendingActions()); err != nil {
			return "", err
		}
		return c.runCycles(ctx, st)
	}

	last := st.LastMessage()
	switch {
	case last == nil:
		return "", fmt.Errorf("%w: nothing to resume for session %s", contractx.ErrValidation, sessionID)
	case last.Role == contractx.RoleAssistant:
		// Turn already completed; return the recorded reply without
		// re-running side effects.
		return last.Content, nil
	default:
		// Crash landed between a completed action batch (or the initial
		// user append) and the next oracle call.
		return c.runCycles(ctx, st)
	}
}

func (c *Controller) runCycles(ctx context.Context, st *statex.TurnState) (string, error) {
	cycles := 0
	for {
		c.publish(ctx, contractx.Event{
			ID:        uuid.NewString(),
			SessionID: st.SessionID,
			Cycle:     cycles,
			Type:      contractx.EventTypeReasoning,
		})

		assistant, err := c.oracle.Decide(ctx, contractx.DecideRequest{
			CustomerID: c.customerID,
			Messages:   st.Clone().Messages,
		})
		if err != nil {
			c.fail(ctx, st, cycles, err)
			return "", err
		}

		st.AppendAssistant(assistant, c.now())
		if err := c.checkpoint(ctx, st); err != nil {
			return "", err
		}
		appended := st.LastMessage()
		c.publish(ctx, contractx.Event{
			ID:        uuid.NewString(),
			SessionID: st.SessionID,
			Cycle:     cycles,
			Type:      contractx.EventTypeAssistantMessage,
			Message:   appended,
		})

		if !appended.HasActions() {
			c.publish(ctx, contractx.Event{
				ID:        uuid.NewString(),
				SessionID: st.SessionID,
				Cycle:     cycles,
				Type:      contractx.EventTypeTurnCompleted,
			})
			return appended.Content, nil
		}

		cycles++
		if cycles > c.maxIterations {
			err := fmt.Errorf("%w: %d cycles for session %s", contractx.ErrRecursionLimit, c.maxIterations, st.SessionID)
			c.fail(ctx, st, cycles, err)
			return "", err
		}

		if err := c.runActions(ctx, st, cycles, appended.Actions); err != nil {
			return "", err
		}
	}
}

// runActions executes one batch strictly in the requested order, appending
// and checkpointing each result before the next action runs.
func (c *Controller) runActions(ctx context.Context, st *statex.TurnState, cycle int, requests []contractx.ActionRequest) error {
	for _, req := range requests {
		result, err := c.actions.Execute(ctx, req)
		if err != nil {
			// Unknown action or schema mismatch: a contract violation
			// between oracle and registry, fatal to the turn.
			c.fail(ctx, st, cycle, err)
			return err
		}

		st.AppendActionResult(req.Action, req.CallID, result, c.now())
		if err := c.checkpoint(ctx, st); err != nil {
			return err
		}
		c.publish(ctx, contractx.Event{
			ID:        uuid.NewString(),
			SessionID: st.SessionID,
			Cycle:     cycle,
			Type:      contractx.EventTypeActionResult,
			Action:    req.Action,
			Message:   st.LastMessage(),
		})
	}
	return nil
}

func (c *Controller) loadOrCreate(ctx context.Context, sessionID string) (*statex.TurnState, error) {
	st, err := c.store.Load(ctx, sessionID)
	if err == nil {
		return st, nil
	}
	if !errors.Is(err, statex.ErrStateNotFound) {
		return nil, err
	}
	return statex.NewTurnState(sessionID, c.customerID, c.now()), nil
}

// checkpoint persists the transcript before control proceeds; a failed
// checkpoint aborts the turn rather than risking unreplayable effects.
func (c *Controller) checkpoint(ctx context.Context, st *statex.TurnState) error {
	if err := c.store.Save(ctx, st); err != nil {
		return fmt.Errorf("checkpoint turn state: %w", err)
	}
	return nil
}

func (c *Controller) publish(ctx context.Context, ev contractx.Event) {
	if err := c.events.Publish(ctx, ev); err != nil {
		log.Warn().Err(err).Str("session_id", ev.SessionID).Str("type", string(ev.Type)).Msg("event publish failed")
	}
}

func (c *Controller) fail(ctx context.Context, st *statex.TurnState, cycle int, cause error) {
	c.publish(ctx, contractx.Event{
		ID:          uuid.NewString(),
		SessionID:   st.SessionID,
		Cycle:       cycle,
		Type:        contractx.EventTypeTurnFailed,
		Description: cause.Error(),
	})
}

func (c *Controller) acquire(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.active[sessionID]; busy {
		return false
	}
	c.active[sessionID] = struct{}{}
	return true
}

func (c *Controller) release(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.active, sessionID)
}

type noopEventSink struct{}

func (noopEventSink) Publish(context.Context, contractx.Event) error {
	return nil
}
