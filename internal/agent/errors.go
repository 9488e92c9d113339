package agent

import "errors"

var (
	// ErrInterrupted reports a turn cut short by the user. The conversation
	// buffer keeps whatever completed before the interrupt.
	ErrInterrupted = errors.New("turn interrupted")

	// ErrExecutionFailed reports a turn the model could not finish, such as
	// exhausting its malformed-output correction attempts.
	ErrExecutionFailed = errors.New("agent execution failed")
)
