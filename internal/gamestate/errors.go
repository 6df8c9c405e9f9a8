package gamestate

import (
	"errors"
	"fmt"
)

// ErrOutOfSync means a delta arrived before any snapshot since the last
// (re)connect. The store keeps its last-known state; the caller awaits a
// fresh snapshot.
var ErrOutOfSync = errors.New("store out of sync: awaiting snapshot")

// ViolationError reports a structurally valid message whose application
// would break a state invariant. It indicates a server/client mismatch and
// is never silently tolerated: the update is rejected wholesale.
type ViolationError struct {
	Reason string
}

func (e *ViolationError) Error() string {
	return "protocol violation: " + e.Reason
}

func violationf(format string, args ...any) error {
	return &ViolationError{Reason: fmt.Sprintf(format, args...)}
}
