package session

// State is the lifecycle state of a session.
//
//	initialized -> sending -> waiting -> receiving -> completed
//	                                              \-> failed
//	any non-terminal state -> cancelled
type State string

const (
	StateInitialized State = "initialized"
	StateSending     State = "sending"
	StateWaiting     State = "waiting"
	StateReceiving   State = "receiving"
	StateCompleted   State = "completed"
	StateFailed      State = "failed"
	StateCancelled   State = "cancelled"
)

// IsTerminal reports whether the state admits no further transitions.
// Terminal sessions stop accruing duration.
func (s State) IsTerminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	}
	return false
}
