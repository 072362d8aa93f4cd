package launcher

// State is one stage of the Supervisor's lifecycle.
type State int32

const (
	StateConstructing State = iota
	StateHandlersLive
	StateInitializingSettings
	StateRunning
	StateDraining
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateConstructing:
		return "constructing"
	case StateHandlersLive:
		return "handlers-live"
	case StateInitializingSettings:
		return "initializing-settings"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}
