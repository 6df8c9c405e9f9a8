package hokm

// PlayerView is what one client is allowed to know about a seat. Hand is
// populated only for the viewing client's own seat; everyone else is just a
// count.
type PlayerView struct {
	ID        Seat   `json:"id"`
	HandSize  int    `json:"handSize"`
	WonTricks int    `json:"wonTricks"`
	Hand      []Card `json:"hand,omitempty"`
}

// TrickState is the trick in progress.
type TrickState struct {
	CardsPlayed []PlayedCard `json:"cardsPlayed"`
	Leader      Seat         `json:"leader"`
	TurnOwner   Seat         `json:"turnOwner"`
}

// GameState is one client's complete view of the shared game. It is the
// payload of a Snapshot and the root aggregate the client-side store owns.
type GameState struct {
	Phase         Phase        `json:"phase"`
	Players       []PlayerView `json:"players"`
	TrumpSuit     Suit         `json:"trumpSuit,omitempty"`
	CurrentTrick  TrickState   `json:"currentTrick"`
	Scores        [2]int       `json:"scores"`
	Hakem         Seat         `json:"hakem"`
	LocalPlayerID Seat         `json:"localPlayerId"`
}

// Player returns the view for the given seat, or nil if the seat is absent.
func (gs *GameState) Player(id Seat) *PlayerView {
	for i := range gs.Players {
		if gs.Players[i].ID == id {
			return &gs.Players[i]
		}
	}
	return nil
}

// Clone returns a deep copy sharing no memory with the receiver.
func (gs GameState) Clone() GameState {
	out := gs
	out.Players = make([]PlayerView, len(gs.Players))
	for i, p := range gs.Players {
		out.Players[i] = p
		if p.Hand != nil {
			out.Players[i].Hand = append([]Card(nil), p.Hand...)
		}
	}
	if gs.CurrentTrick.CardsPlayed != nil {
		out.CurrentTrick.CardsPlayed = append([]PlayedCard(nil), gs.CurrentTrick.CardsPlayed...)
	}
	return out
}
