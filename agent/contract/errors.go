package contract

import "errors"

var (
	ErrModelInvoke      = errors.New("model invoke failed")
	ErrSchemaViolation  = errors.New("model response violates schema")
	ErrValidation       = errors.New("validation failed")
	ErrUnknownAction    = errors.New("action is not registered")
	ErrInvalidArguments = errors.New("action arguments are invalid")
	ErrRecursionLimit   = errors.New("recursion limit exceeded")
	ErrTurnInProgress   = errors.New("a turn is already running for this session")
)
