// Package gamestate owns the client's single source of local truth: the
// last-known-good server state, replaced by snapshots and patched by deltas,
// with a subscription bus for presentation code. The store is the sole
// writer of the game state; everything else reads copies.
package gamestate

import (
	"io"
	"sync"

	"github.com/mvonline/hokmv2/internal/debug"
	"github.com/mvonline/hokmv2/internal/hokm"
	"github.com/mvonline/hokmv2/internal/protocol"
	"github.com/phuslu/log"
)

// Store applies validated snapshots and deltas atomically and hands out
// consistent copies of the state. Updates are serialized on an internal
// lock; the transport's in-order frame delivery is relied upon for delta
// ordering, so there are no client-side sequence numbers.
type Store struct {
	logger *log.Logger
	bus    Bus

	mu     sync.Mutex
	synced bool
	state  hokm.GameState
}

func NewStore(logger *log.Logger) *Store {
	// nil logger (tests) => default, but silenced
	if logger == nil {
		tmp := log.DefaultLogger
		logger = &tmp
		logger.Writer = &log.IOWriter{Writer: io.Discard}
	}
	return &Store{logger: logger}
}

// Subscribe registers a callback invoked after every successful snapshot or
// delta application, never on rejected updates.
func (s *Store) Subscribe(fn func(hokm.GameState)) (unsubscribe func()) {
	return s.bus.Subscribe(fn)
}

// GetState returns a deep copy; callers never observe a partial write.
func (s *Store) GetState() hokm.GameState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Synchronized reports whether a snapshot has arrived since the last
// (re)connect.
func (s *Store) Synchronized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.synced
}

// MarkOutOfSync is called by the connection manager on every disconnect:
// the state sticks around as last-known-good, but deltas are rejected until
// a fresh snapshot arrives.
func (s *Store) MarkOutOfSync() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.synced = false
}

// ApplySnapshot replaces the state wholesale and marks the store
// synchronized. A snapshot that violates the state invariants is rejected
// with a ViolationError and changes nothing, sync status included.
func (s *Store) ApplySnapshot(st hokm.GameState) error {
	if err := checkInvariants(&st); err != nil {
		s.logger.Warn().Err(err).Msg("rejected snapshot")
		return err
	}
	s.mu.Lock()
	s.state = st.Clone()
	s.synced = true
	notify := s.state.Clone()
	s.mu.Unlock()

	s.logger.Debug().
		Str("phase", string(notify.Phase)).
		Int("turn", int(notify.CurrentTrick.TurnOwner)).
		Msg("applied snapshot")
	s.bus.publish(notify)
	return nil
}

// ApplyDelta patches the state in place, all-or-nothing. Returns
// ErrOutOfSync before the first snapshot of a connection, a ViolationError
// when the delta would break an invariant (state unchanged), nil otherwise.
func (s *Store) ApplyDelta(d protocol.Delta) error {
	s.mu.Lock()
	if !s.synced {
		s.mu.Unlock()
		return ErrOutOfSync
	}
	next := s.state.Clone()
	if err := applyDelta(&next, d); err != nil {
		s.mu.Unlock()
		s.logger.Warn().Err(err).Str("kind", string(d.Kind)).Msg("rejected delta")
		return err
	}
	s.state = next
	notify := next.Clone()
	s.mu.Unlock()

	s.logger.Debug().Str("kind", string(d.Kind)).Msg("applied delta")
	s.bus.publish(notify)
	return nil
}

func applyDelta(st *hokm.GameState, d protocol.Delta) error {
	switch d.Kind {
	case protocol.DeltaCardPlayed:
		return applyCardPlayed(st, d.CardPlayed)
	case protocol.DeltaTrickResolved:
		return applyTrickResolved(st, d.TrickResolved)
	case protocol.DeltaTrumpChosen:
		return applyTrumpChosen(st, d.TrumpChosen)
	case protocol.DeltaPhaseChanged:
		return applyPhaseChanged(st, d.PhaseChanged)
	case protocol.DeltaScoreUpdated:
		return applyScoreUpdated(st, d.ScoreUpdated)
	default:
		return violationf("unknown delta kind %q", d.Kind)
	}
}

func applyCardPlayed(st *hokm.GameState, p *protocol.CardPlayedPayload) error {
	debug.Assert(p != nil)
	if st.Phase != hokm.PhasePlaying {
		return violationf("CardPlayed in phase %s", st.Phase)
	}
	player := st.Player(p.Player)
	if player == nil {
		return violationf("CardPlayed for absent player %d", p.Player)
	}
	if p.Player != st.CurrentTrick.TurnOwner {
		return violationf("CardPlayed by player %d out of turn (turn owner %d)",
			p.Player, st.CurrentTrick.TurnOwner)
	}
	if len(st.CurrentTrick.CardsPlayed) >= hokm.NumSeats {
		return violationf("CardPlayed into a full trick")
	}
	for _, play := range st.CurrentTrick.CardsPlayed {
		if play.Card == p.Card {
			return violationf("card %s already on the table", p.Card)
		}
	}
	if p.Player == st.LocalPlayerID {
		if !removeCard(player, p.Card) {
			return violationf("card %s not in local hand", p.Card)
		}
	} else {
		if player.HandSize <= 0 {
			return violationf("player %d has no cards left", p.Player)
		}
		if local := st.Player(st.LocalPlayerID); local != nil {
			for _, c := range local.Hand {
				if c == p.Card {
					return violationf("card %s is still in the local hand", p.Card)
				}
			}
		}
		player.HandSize--
	}
	st.CurrentTrick.CardsPlayed = append(st.CurrentTrick.CardsPlayed,
		hokm.PlayedCard{Seat: p.Player, Card: p.Card})
	if len(st.CurrentTrick.CardsPlayed) == hokm.NumSeats {
		st.Phase = hokm.PhaseTrickResolved
	} else {
		st.CurrentTrick.TurnOwner = st.CurrentTrick.TurnOwner.Next()
	}
	return nil
}

func applyTrickResolved(st *hokm.GameState, p *protocol.TrickResolvedPayload) error {
	debug.Assert(p != nil)
	if st.Phase != hokm.PhaseTrickResolved {
		return violationf("TrickResolved in phase %s", st.Phase)
	}
	if len(st.CurrentTrick.CardsPlayed) != hokm.NumSeats {
		return violationf("TrickResolved with %d cards on the table",
			len(st.CurrentTrick.CardsPlayed))
	}
	winner := st.Player(p.Winner)
	if winner == nil {
		return violationf("TrickResolved for absent winner %d", p.Winner)
	}
	winner.WonTricks++
	st.CurrentTrick.CardsPlayed = nil
	st.CurrentTrick.Leader = p.Winner
	st.CurrentTrick.TurnOwner = p.Winner
	st.Phase = hokm.PhasePlaying
	return nil
}

func applyTrumpChosen(st *hokm.GameState, p *protocol.TrumpChosenPayload) error {
	debug.Assert(p != nil)
	if st.Phase != hokm.PhaseTrumpSelection {
		return violationf("TrumpChosen in phase %s", st.Phase)
	}
	if st.TrumpSuit != "" {
		return violationf("trump already chosen (%s)", st.TrumpSuit)
	}
	st.TrumpSuit = p.Suit
	st.Phase = hokm.PhasePlaying
	st.CurrentTrick.Leader = st.Hakem
	st.CurrentTrick.TurnOwner = st.Hakem
	return nil
}

func applyPhaseChanged(st *hokm.GameState, p *protocol.PhaseChangedPayload) error {
	debug.Assert(p != nil)
	switch p.Phase {
	case hokm.PhaseTrumpSelection:
		st.CurrentTrick.CardsPlayed = nil
	case hokm.PhaseRoundOver:
		// trump is immutable only until the round ends
		st.CurrentTrick.CardsPlayed = nil
		st.TrumpSuit = ""
	}
	st.Phase = p.Phase
	return nil
}

func applyScoreUpdated(st *hokm.GameState, p *protocol.ScoreUpdatedPayload) error {
	debug.Assert(p != nil)
	if p.Scores[0] < 0 || p.Scores[1] < 0 {
		return violationf("negative score %v", p.Scores)
	}
	st.Scores = p.Scores
	if p.ResetTricks {
		for i := range st.Players {
			st.Players[i].WonTricks = 0
		}
	}
	return nil
}

func removeCard(p *hokm.PlayerView, card hokm.Card) bool {
	for i, c := range p.Hand {
		if c == card {
			p.Hand = append(p.Hand[:i], p.Hand[i+1:]...)
			p.HandSize = len(p.Hand)
			return true
		}
	}
	return false
}

// checkInvariants enforces the cross-field invariants on a full snapshot:
// seat bounds, four players once past Waiting, turn owner present, trick
// size, and no card in two places at once.
func checkInvariants(st *hokm.GameState) error {
	if !st.Phase.Valid() {
		return violationf("invalid phase %q", st.Phase)
	}
	if st.Phase != hokm.PhaseWaiting && len(st.Players) != hokm.NumSeats {
		return violationf("%d players in phase %s", len(st.Players), st.Phase)
	}
	seen := map[hokm.Seat]bool{}
	for _, p := range st.Players {
		if !p.ID.Valid() {
			return violationf("invalid player id %d", p.ID)
		}
		if seen[p.ID] {
			return violationf("duplicate player id %d", p.ID)
		}
		seen[p.ID] = true
		if p.HandSize < 0 || p.WonTricks < 0 {
			return violationf("negative counts for player %d", p.ID)
		}
		if p.Hand != nil && len(p.Hand) != p.HandSize {
			return violationf("player %d hand size %d does not match %d cards",
				p.ID, p.HandSize, len(p.Hand))
		}
	}
	if len(st.Players) > 0 {
		if st.Player(st.CurrentTrick.TurnOwner) == nil {
			return violationf("turn owner %d absent", st.CurrentTrick.TurnOwner)
		}
		if st.Player(st.LocalPlayerID) == nil {
			return violationf("local player %d absent", st.LocalPlayerID)
		}
	}
	if len(st.CurrentTrick.CardsPlayed) > hokm.NumSeats {
		return violationf("%d cards in trick", len(st.CurrentTrick.CardsPlayed))
	}
	if st.TrumpSuit != "" && !st.TrumpSuit.Valid() {
		return violationf("invalid trump suit %q", st.TrumpSuit)
	}
	if st.TrumpSuit == "" &&
		(st.Phase == hokm.PhasePlaying || st.Phase == hokm.PhaseTrickResolved) {
		return violationf("phase %s without a trump suit", st.Phase)
	}
	if st.Scores[0] < 0 || st.Scores[1] < 0 {
		return violationf("negative score %v", st.Scores)
	}
	// a card is in at most one place: one hand or the table
	place := map[hokm.Card]string{}
	for _, p := range st.Players {
		for _, c := range p.Hand {
			if where, dup := place[c]; dup {
				return violationf("card %s in two places (%s)", c, where)
			}
			place[c] = "hand"
		}
	}
	trickSeats := map[hokm.Seat]bool{}
	for _, play := range st.CurrentTrick.CardsPlayed {
		if trickSeats[play.Seat] {
			return violationf("player %d played twice in one trick", play.Seat)
		}
		trickSeats[play.Seat] = true
		if where, dup := place[play.Card]; dup {
			return violationf("card %s in two places (%s)", play.Card, where)
		}
		place[play.Card] = "trick"
	}
	return nil
}
