package session

import "fmt"

// State represents the lifecycle state of a session. Transitions are
// strictly linear; Streaming is the only state with concurrent
// sub-activity (outbound audio and inbound results).
type State int32

const (
	// StateConnecting - transport dial in progress.
	StateConnecting State = iota
	// StateConfiguring - connected, configuration handshake being sent.
	StateConfiguring
	// StateStreaming - audio flowing out, token batches flowing in.
	StateStreaming
	// StateFinalizing - finalize handshake in progress, draining results.
	StateFinalizing
	// StateClosed - transport torn down. Terminal.
	StateClosed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateConfiguring:
		return "CONFIGURING"
	case StateStreaming:
		return "STREAMING"
	case StateFinalizing:
		return "FINALIZING"
	case StateClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true if the state is terminal.
func (s State) IsTerminal() bool {
	return s == StateClosed
}
