package vm

// Execution statuses.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusFulfilled = "fulfilled"
	StatusFailed    = "failed"
)

// State is the mutable execution record of one protocol run. Bindings hold
// the protocol inputs under "inputs" plus one entry per completed call or
// set node. Trace records every visited node in order.
type State struct {
	ProtocolID string         `json:"protocol_id"`
	Status     string         `json:"status"`
	Cursor     string         `json:"current_node,omitempty"`
	Bindings   map[string]any `json:"bindings"`
	Trace      []string       `json:"trace"`
	ExitNode   string         `json:"exit_node,omitempty"`
	Output     map[string]any `json:"output,omitempty"`

	ErrKind    string `json:"error_kind,omitempty"`
	ErrMessage string `json:"error_message,omitempty"`
}

func newState(protocolID string, inputs map[string]any) *State {
	if inputs == nil {
		inputs = map[string]any{}
	}
	return &State{
		ProtocolID: protocolID,
		Status:     StatusPending,
		Bindings:   map[string]any{"inputs": inputs},
		Trace:      []string{},
	}
}

func (st *State) fail(kind, message string) *State {
	st.Status = StatusFailed
	st.ErrKind = kind
	st.ErrMessage = message
	return st
}
