package sandbox

// State is the lifecycle state of a sandbox instance.
type State int

const (
	StateIdle State = iota
	StatePreparing
	StateRunning
	StateSucceeded
	StateFailed
	StateCleanedUp
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePreparing:
		return "preparing"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateCleanedUp:
		return "cleaned_up"
	default:
		return "unknown"
	}
}
