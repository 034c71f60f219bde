package resilience

// State is the controller's position in the recovery lifecycle.
type State int

const (
	// StateIdle: no media locator has been handed to the engine yet.
	StateIdle State = iota
	// StateLoading: a locator was handed to the engine, waiting for ready.
	StateLoading
	// StateReady: the engine reported its first ready/frame event.
	StateReady
	// StateStalled: ready without an actively-playing signal past the stall timeout.
	StateStalled
	// StateRetrying: a restart is scheduled behind a backoff delay.
	StateRetrying
	// StateFailed: the retry cap was reached without recovery; automatic
	// recovery has stopped.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateLoading:
		return "Loading"
	case StateReady:
		return "Ready"
	case StateStalled:
		return "Stalled"
	case StateRetrying:
		return "Retrying"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}
