// Package hokm holds the card model and the authoritative rules of the
// four-player trick-taking game Hokm: seats 0+2 play against 1+3, the hakem
// declares the trump suit after seeing the first five cards, and seven tricks
// take the round.
package hokm

import "fmt"

type Suit string

const (
	Spades   Suit = "Spades"
	Hearts   Suit = "Hearts"
	Diamonds Suit = "Diamonds"
	Clubs    Suit = "Clubs"
)

// Suits lists every suit in a stable order.
func Suits() [4]Suit {
	return [4]Suit{Spades, Hearts, Diamonds, Clubs}
}

func (s Suit) Valid() bool {
	switch s {
	case Spades, Hearts, Diamonds, Clubs:
		return true
	}
	return false
}

type Rank string

const (
	Two   Rank = "2"
	Three Rank = "3"
	Four  Rank = "4"
	Five  Rank = "5"
	Six   Rank = "6"
	Seven Rank = "7"
	Eight Rank = "8"
	Nine  Rank = "9"
	Ten   Rank = "10"
	Jack  Rank = "Jack"
	Queen Rank = "Queen"
	King  Rank = "King"
	Ace   Rank = "Ace"
)

var rankValues = map[Rank]int{
	Two: 2, Three: 3, Four: 4, Five: 5, Six: 6, Seven: 7,
	Eight: 8, Nine: 9, Ten: 10, Jack: 11, Queen: 12, King: 13, Ace: 14,
}

// Ranks lists every rank from low to high, ace high.
func Ranks() [13]Rank {
	return [13]Rank{
		Two, Three, Four, Five, Six, Seven,
		Eight, Nine, Ten, Jack, Queen, King, Ace,
	}
}

func (r Rank) Valid() bool {
	_, ok := rankValues[r]
	return ok
}

// Value returns the rank's comparison value (2..14, ace high).
func (r Rank) Value() int {
	return rankValues[r]
}

// Card is an immutable value; two cards are equal iff rank and suit match.
type Card struct {
	Rank Rank `json:"rank"`
	Suit Suit `json:"suit"`
}

func (c Card) Valid() bool {
	return c.Rank.Valid() && c.Suit.Valid()
}

func (c Card) String() string {
	return fmt.Sprintf("%s of %s", c.Rank, c.Suit)
}

// NumSeats is the fixed player count; seats sit clockwise.
const NumSeats = 4

// Seat identifies a player. Assigned by the server at join time and never
// reassigned for the session.
type Seat int

func (s Seat) Valid() bool {
	return s >= 0 && s < NumSeats
}

// Next returns the seat one position clockwise.
func (s Seat) Next() Seat {
	return (s + 1) % NumSeats
}

// Team returns 0 for seats 0 and 2, 1 for seats 1 and 3.
func (s Seat) Team() int {
	return int(s) % 2
}

// PlayedCard records one play inside a trick.
type PlayedCard struct {
	Seat Seat `json:"player"`
	Card Card `json:"card"`
}

// Phase is the coarse state of a session.
type Phase string

const (
	PhaseWaiting        Phase = "Waiting"
	PhaseTrumpSelection Phase = "TrumpSelection"
	PhasePlaying        Phase = "Playing"
	PhaseTrickResolved  Phase = "TrickResolved"
	PhaseRoundOver      Phase = "RoundOver"
	PhaseGameOver       Phase = "GameOver"
)

func (p Phase) Valid() bool {
	switch p {
	case PhaseWaiting, PhaseTrumpSelection, PhasePlaying,
		PhaseTrickResolved, PhaseRoundOver, PhaseGameOver:
		return true
	}
	return false
}
