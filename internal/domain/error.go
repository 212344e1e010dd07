package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound          = errors.New("entity not found")
	ErrAlreadyExists     = errors.New("entity already exists")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrInvalidInput      = errors.New("invalid input")
	ErrIllegalTransition = errors.New("illegal session state transition")

	// LLM failures. The responder treats all three the same way.
	ErrLLMUnavailable = errors.New("llm unavailable")
	ErrLLMTimeout     = errors.New("llm timeout")
	ErrLLMQuota       = errors.New("llm quota exceeded")

	ErrTransportClosed = errors.New("transport closed")
)
