package gamestate

import (
	"sync"

	"github.com/mvonline/hokmv2/internal/hokm"
)

type subscriber struct {
	id int
	fn func(hokm.GameState)
}

// Bus fans successful state updates out to presentation code, decoupling it
// from transport timing. Callbacks run synchronously, in subscription order,
// and must treat the state they receive as read-only.
type Bus struct {
	mu     sync.Mutex
	subs   []subscriber
	nextID int
}

// Subscribe registers fn and returns its unsubscribe func. Unsubscribing
// from inside a callback is safe and takes effect before the next
// notification cycle.
func (b *Bus) Subscribe(fn func(hokm.GameState)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.subs = append(b.subs, subscriber{id: id, fn: fn})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

func (b *Bus) publish(st hokm.GameState) {
	// snapshot the subscriber list so unsubscribe during a notification
	// cannot corrupt the iteration
	b.mu.Lock()
	subs := append([]subscriber(nil), b.subs...)
	b.mu.Unlock()
	for _, s := range subs {
		s.fn(st)
	}
}
