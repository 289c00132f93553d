package contract

import "context"

// Oracle is the external reasoning engine. Given the transcript so far it
// returns the next assistant message: either a final reply or one carrying
// action requests. It never executes actions itself.
type Oracle interface {
	Decide(ctx context.Context, req DecideRequest) (Message, error)
}

// ActionRegistry resolves and runs one requested action. The returned string
// is the action's textual outcome; success and domain failures are both
// text. An error return signals a protocol violation (unknown action,
// arguments rejected by the schema) and aborts the turn.
type ActionRegistry interface {
	Execute(ctx context.Context, req ActionRequest) (string, error)
}

// EventSink consumes the ordered step events of a turn.
type EventSink interface {
	Publish(ctx context.Context, ev Event) error
}
