package domain

// RunStatus describes the lifecycle state of a session's run.
type RunStatus string

const (
	RunIdle      RunStatus = "idle"
	RunRunning   RunStatus = "running"
	RunDone      RunStatus = "done"
	RunError     RunStatus = "error"
	RunCancelled RunStatus = "cancelled"
)

// Terminal reports whether the status is a final state.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunDone, RunError, RunCancelled:
		return true
	}
	return false
}

// RunView is a snapshot of the current run, safe to serialize to clients.
type RunView struct {
	Status    RunStatus `json:"status"`
	RequestID string    `json:"requestId,omitempty"`
	MessageID string    `json:"messageId,omitempty"`
	Partial   string    `json:"partial,omitempty"`
}
