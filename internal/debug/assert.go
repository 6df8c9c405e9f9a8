package debug

import (
	"fmt"
	"runtime"
)

// Assert panics when truth is false. Use it only for states that cannot be
// reached unless the program itself is wrong; anything that depends on input
// (network frames, user commands) must be handled with errors instead.
func Assert(truth bool, msg ...string) {
	if len(msg) > 1 {
		panic("invalid assert args")
	}
	if !truth {
		msg := fmt.Sprintf("assertion failed(%s)", msg)
		// the panic site is otherwise buried in the recovery stack;
		// prepend the caller's location
		if _, file, line, ok := runtime.Caller(1); ok {
			msg = fmt.Sprintf("%s:%d: %s", file, line, msg)
		}
		panic(msg)
	}
}
