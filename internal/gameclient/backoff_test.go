package gameclient

import (
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestBackoffDelayBounds(t *testing.T) {
	is := is.New(t)

	base := 500 * time.Millisecond
	cap := 10 * time.Second

	// expected full (pre-jitter) delay per attempt
	expected := []time.Duration{
		500 * time.Millisecond,
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		10 * time.Second,
		10 * time.Second,
	}
	for attempt, full := range expected {
		// jitter is random; sample enough to catch an out-of-range draw
		for i := 0; i < 100; i++ {
			d := backoffDelay(base, cap, attempt+1)
			is.True(d >= full/2)
			is.True(d <= full)
		}
	}
}

func TestBackoffDelayNeverExceedsCap(t *testing.T) {
	is := is.New(t)

	for attempt := 1; attempt < 64; attempt++ {
		d := backoffDelay(time.Second, 5*time.Second, attempt)
		is.True(d <= 5*time.Second)
		is.True(d > 0)
	}
}
