package monitor

type State int

const (
	StateDiscovering State = iota
	StateWaitingForMarketplace
	StatePolling
	StateTicketDetected
	StateSucceeded
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateDiscovering:
		return "discovering"
	case StateWaitingForMarketplace:
		return "waiting-for-marketplace"
	case StatePolling:
		return "polling"
	case StateTicketDetected:
		return "ticket-detected"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether the run is over.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateCancelled
}
