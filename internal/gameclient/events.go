package gameclient

// ConnState is the connection manager's lifecycle state.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateReconnecting:
		return "Reconnecting"
	default:
		return "Unknown"
	}
}

type EventKind int

const (
	// EventConnected fires on every transition into Connected. After any
	// but the first, the store is awaiting a fresh snapshot.
	EventConnected EventKind = iota
	// EventConnectionLost fires on an unexpected close; Err carries the
	// transport error and reconnection is already scheduled.
	EventConnectionLost
	// EventReconnecting fires before each backoff wait; Attempt counts
	// from 1.
	EventReconnecting
	// EventGaveUp fires when the reconnect attempt cap is exhausted.
	EventGaveUp
	// EventDisconnected fires when Disconnect ends the session.
	EventDisconnected
	// EventServerError relays a server Error message.
	EventServerError
	// EventSyncError reports a snapshot or delta the store rejected
	// (out of sync or protocol violation); Err carries the store error.
	EventSyncError
)

// Event is how transport trouble and server complaints reach the
// presentation layer. Nothing here is fatal to the process.
type Event struct {
	Kind          EventKind
	Attempt       int
	Err           error
	Reason        string
	RelatedAction string
}
