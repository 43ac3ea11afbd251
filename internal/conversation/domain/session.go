package domain

// ConnectionState transport session lifecycle
type ConnectionState string

const (
	// StateDisconnected no channel open
	StateDisconnected ConnectionState = "disconnected"
	// StateConnecting dial or reconnect in flight
	StateConnecting ConnectionState = "connecting"
	// StateJoined channel open, room set may be empty
	StateJoined ConnectionState = "joined"
)

// SessionInfo snapshot of one client's transport session
type SessionInfo struct {
	ViewerID string
	Role     Role
	State    ConnectionState
	Rooms    []string
}
