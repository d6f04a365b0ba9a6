package tui

import "github.com/Veraticus/casa/internal/assistant"

// replyMsg reports that a send, confirm or cancel finished. The conversation
// itself is re-read from the session.
type replyMsg struct {
	err    error
	status assistant.ExecutionStatus
}
