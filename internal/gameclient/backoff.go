package gameclient

import (
	"math/rand"
	"time"
)

// backoffDelay returns the jittered wait before reconnect attempt n
// (counting from 1): base doubled per attempt, capped, then drawn uniformly
// from [d/2, d] so a burst of clients does not redial in lockstep.
func backoffDelay(base, cap time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= cap {
			d = cap
			break
		}
	}
	if d > cap {
		d = cap
	}
	half := d / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}
