package gameclient

import (
	"github.com/mvonline/hokmv2/internal/hokm"
	"github.com/mvonline/hokmv2/internal/protocol"
)

// The intent dispatcher: every user action is pre-checked against the local
// state before any network I/O, so obviously illegal actions fail instantly
// and offline. The checks cover only what the client can know; rules that
// need hidden information (must-follow-suit against other hands) stay
// server-side, which is also why nothing here mutates the store: a play is
// real only once the server confirms it with a delta.

func illegal(action, reason string) error {
	return &IllegalActionError{Action: action, Reason: reason}
}

// PlayCard asks the server to play card. Fails locally with an
// IllegalActionError unless it is the local player's turn, the card is in
// hand and the game is in the Playing phase.
func (c *Client) PlayCard(card hokm.Card) error {
	if !card.Valid() {
		return illegal("PlayCard", "invalid card")
	}
	st := c.store.GetState()
	if st.Phase != hokm.PhasePlaying {
		return illegal("PlayCard", "game is not in the playing phase")
	}
	if st.CurrentTrick.TurnOwner != st.LocalPlayerID {
		return illegal("PlayCard", "not your turn")
	}
	local := st.Player(st.LocalPlayerID)
	if local == nil || !holds(local.Hand, card) {
		return illegal("PlayCard", "card not in hand")
	}
	return c.Send(protocol.PlayCard{Card: card})
}

// ChooseTrump declares the trump suit. Only legal for the hakem during
// trump selection.
func (c *Client) ChooseTrump(suit hokm.Suit) error {
	if !suit.Valid() {
		return illegal("ChooseTrump", "invalid suit")
	}
	st := c.store.GetState()
	if st.Phase != hokm.PhaseTrumpSelection {
		return illegal("ChooseTrump", "game is not in trump selection")
	}
	if st.LocalPlayerID != st.Hakem {
		return illegal("ChooseTrump", "you are not the hakem")
	}
	return c.Send(protocol.ChooseTrump{Suit: suit})
}

// Ready signals readiness for the next round. Legal while waiting for a
// round to start.
func (c *Client) Ready() error {
	st := c.store.GetState()
	if st.Phase != hokm.PhaseWaiting && st.Phase != hokm.PhaseRoundOver {
		return illegal("Ready", "round already in progress")
	}
	return c.Send(protocol.Ready{})
}

func holds(hand []hokm.Card, card hokm.Card) bool {
	for _, c := range hand {
		if c == card {
			return true
		}
	}
	return false
}
