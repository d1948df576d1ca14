package ai

// State is a model lifecycle state.
type State string

// Lifecycle states.
const (
	StateIdle       State = "idle"
	StateLoading    State = "loading"
	StateReady      State = "ready"
	StateGenerating State = "generating"
	StateError      State = "error"
)

// States lists every state.
var States = []State{StateIdle, StateLoading, StateReady, StateGenerating, StateError}

// Status is the observable lifecycle status.
type Status struct {
	State       State   `json:"status"`
	Progress    string  `json:"progress,omitempty"`
	ProgressVal float64 `json:"progressVal,omitempty"`
	Model       string  `json:"model"`
}

func stateNames() []string {
	out := make([]string, len(States))
	for i, s := range States {
		out[i] = string(s)
	}
	return out
}
