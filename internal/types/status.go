package types

// Simulation and task lifecycle states. A simulation only ever moves
// pending -> in_progress -> completed|error, except that the reaper may
// force expired once its TTL has passed.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusError      = "error"
	StatusExpired    = "expired"
)

func KnownStatus(s string) bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusError, StatusExpired:
		return true
	}
	return false
}

// TerminalStatus reports whether a simulation in this state will never be
// claimed or mutated again by a runner.
func TerminalStatus(s string) bool {
	switch s {
	case StatusCompleted, StatusError, StatusExpired:
		return true
	}
	return false
}
