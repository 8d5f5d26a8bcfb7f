package encoder

// State is the phase of the current encode run.
type State string

const (
	StateInit       State = "init"
	StateConfigured State = "configured"
	StateRunning    State = "running"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateTornDown   State = "torn_down"
)

// StateChangeCallback is called after every state transition, outside the
// driver lock.
type StateChangeCallback func(oldState, newState State)

// Counters is a snapshot of the run counters.
type Counters struct {
	FramesFed      int64 `json:"frames_fed"`
	FramesProduced int64 `json:"frames_produced"`
	BytesFed       int64 `json:"bytes_fed"`
	BytesProduced  int64 `json:"bytes_produced"`
	InputEOS       bool  `json:"input_eos"`
	OutputEOS      bool  `json:"output_eos"`
	ErrorSignalled bool  `json:"error_signalled"`
}
