package models

// ConnectionState is the lifecycle of a session channel.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Identifying
	Joining
	Joined
	Reconnecting
	Failed
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Identifying:
		return "identifying"
	case Joining:
		return "joining"
	case Joined:
		return "joined"
	case Reconnecting:
		return "reconnecting"
	case Failed:
		return "failed"
	default:
		return ""
	}
}

// Handshaking reports whether a transport-level disconnect in this state should trigger the reconnection policy.
func (s ConnectionState) Handshaking() bool {
	return s == Identifying || s == Joining || s == Joined
}
