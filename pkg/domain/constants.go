package domain

// Wire-level constants shared with the remote execution engine.
const (
	// CodeOK is the success code on streamed events.
	CodeOK = 0
	// CodeContentAudit is the failure code for a content-audit rejection.
	// It is session-fatal for the current turn.
	CodeContentAudit = 21103

	// FinishInterrupt on a top-level event pauses the run for user input.
	FinishInterrupt = "interrupt"
	// FinishStop on a top-level event ends the session.
	FinishStop = "stop"

	// KeyUserInput is the conventional name of the start node's free-text
	// input variable.
	KeyUserInput = "AGENT_USER_INPUT"
)
