package gameclient

import "errors"

// ErrNotConnected is returned by Send while the client is not Connected.
// The message is dropped, never queued: replaying stale intents after a
// reconnect is worse than making the caller retry.
var ErrNotConnected = errors.New("not connected")

// IllegalActionError is a local precondition failure in the intent
// dispatcher. No network call was made; the UI can surface it immediately.
type IllegalActionError struct {
	Action string
	Reason string
}

func (e *IllegalActionError) Error() string {
	return "illegal action " + e.Action + ": " + e.Reason
}
