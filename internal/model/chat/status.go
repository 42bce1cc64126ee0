package chat

// ConnState is the lifecycle state of the duplex channel.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Status is the connection text shown in the panel header.
type Status string

const (
	// StatusOnline means only the request/response path is in use.
	StatusOnline    Status = "Online"
	StatusConnected Status = "Connected"
)

// StatusFor derives the header status from the channel state.
func StatusFor(state ConnState) Status {
	if state == StateConnected {
		return StatusConnected
	}
	return StatusOnline
}
