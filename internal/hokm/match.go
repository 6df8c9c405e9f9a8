package hokm

import (
	"fmt"
	"math/rand"

	"github.com/mvonline/hokmv2/internal/debug"
)

const (
	firstPacket = 5  // cards dealt before the hakem declares trump
	handSize    = 13 // cards per seat for a full round
	// tricks (per round) and round points (per match) needed to win
	winningTricks = 7
	winningScore  = 7
)

// NewDeck returns all 52 cards in shuffled order.
func NewDeck() []Card {
	deck := make([]Card, 0, 52)
	for _, suit := range Suits() {
		for _, rank := range Ranks() {
			deck = append(deck, Card{Rank: rank, Suit: suit})
		}
	}
	rand.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
	return deck
}

// Match is the authoritative game. It is not safe for concurrent use; the
// caller serializes access.
type Match struct {
	phase     Phase
	hands     [NumSeats][]Card
	held      [NumSeats][]Card // second packet, dealt after trump declaration
	hakem     Seat
	trump     Suit // zero value until declared
	leader    Seat
	turn      Seat
	trick     []PlayedCard
	wonTricks [NumSeats]int
	scores    [2]int
}

func NewMatch() *Match {
	return &Match{phase: PhaseWaiting}
}

func (m *Match) Phase() Phase { return m.phase }
func (m *Match) Hakem() Seat { return m.hakem }
func (m *Match) Trump() Suit { return m.trump }
func (m *Match) Leader() Seat { return m.leader }
func (m *Match) Turn() Seat { return m.turn }
func (m *Match) Scores() [2]int { return m.scores }

func (m *Match) HandSize(seat Seat) int {
	debug.Assert(seat.Valid())
	return len(m.hands[seat])
}

// Hand returns a copy of the seat's current hand.
func (m *Match) Hand(seat Seat) []Card {
	debug.Assert(seat.Valid())
	hand := make([]Card, len(m.hands[seat]))
	copy(hand, m.hands[seat])
	return hand
}

func (m *Match) WonTricks(seat Seat) int {
	debug.Assert(seat.Valid())
	return m.wonTricks[seat]
}

// Trick returns a copy of the plays in the current trick, in play order.
func (m *Match) Trick() []PlayedCard {
	trick := make([]PlayedCard, len(m.trick))
	copy(trick, m.trick)
	return trick
}

// StartRound shuffles and deals the first five cards to every seat, holding
// the rest back until the hakem declares trump. Legal from Waiting or
// RoundOver.
func (m *Match) StartRound() error {
	if m.phase != PhaseWaiting && m.phase != PhaseRoundOver {
		return fmt.Errorf("cannot start a round in phase %s", m.phase)
	}
	deck := NewDeck()
	for seat := Seat(0); seat < NumSeats; seat++ {
		packet := deck[:handSize]
		deck = deck[handSize:]
		m.hands[seat] = append([]Card(nil), packet[:firstPacket]...)
		m.held[seat] = append([]Card(nil), packet[firstPacket:]...)
		m.wonTricks[seat] = 0
	}
	m.trump = ""
	m.trick = nil
	m.leader = m.hakem
	m.turn = m.hakem
	m.phase = PhaseTrumpSelection
	return nil
}

// DeclareTrump fixes the trump suit for the round and deals out the held
// packets. Only the hakem may declare, and only during trump selection.
func (m *Match) DeclareTrump(seat Seat, suit Suit) error {
	if m.phase != PhaseTrumpSelection {
		return fmt.Errorf("cannot declare trump in phase %s", m.phase)
	}
	if seat != m.hakem {
		return fmt.Errorf("seat %d is not the hakem", seat)
	}
	if !suit.Valid() {
		return fmt.Errorf("unknown suit %q", suit)
	}
	m.trump = suit
	for s := Seat(0); s < NumSeats; s++ {
		m.hands[s] = append(m.hands[s], m.held[s]...)
		m.held[s] = nil
	}
	m.leader = m.hakem
	m.turn = m.hakem
	m.phase = PhasePlaying
	return nil
}

// PlayResult reports what a successful play did beyond placing the card.
type PlayResult struct {
	Play        PlayedCard
	TrickWinner *Seat // set when the play completed a trick
	RoundOver   bool
	MatchOver   bool
	Scores      [2]int
}

// PlayCard validates and applies one play: right phase, right turn, card
// held, led suit followed when possible. A rejected play leaves the match
// untouched.
func (m *Match) PlayCard(seat Seat, card Card) (PlayResult, error) {
	if m.phase != PhasePlaying {
		return PlayResult{}, fmt.Errorf("cannot play in phase %s", m.phase)
	}
	if seat != m.turn {
		return PlayResult{}, fmt.Errorf("not seat %d's turn", seat)
	}
	if !m.holds(seat, card) {
		return PlayResult{}, fmt.Errorf("seat %d does not hold %s", seat, card)
	}
	if len(m.trick) > 0 {
		led := m.trick[0].Card.Suit
		if card.Suit != led && m.hasSuit(seat, led) {
			return PlayResult{}, fmt.Errorf("must follow suit %s", led)
		}
	}

	m.removeCard(seat, card)
	m.trick = append(m.trick, PlayedCard{Seat: seat, Card: card})

	res := PlayResult{Play: PlayedCard{Seat: seat, Card: card}, Scores: m.scores}
	if len(m.trick) < NumSeats {
		m.turn = m.turn.Next()
		return res, nil
	}

	winner := trickWinner(m.trick, m.trump)
	m.wonTricks[winner]++
	m.trick = nil
	m.leader = winner
	m.turn = winner
	res.TrickWinner = &winner

	team0 := m.wonTricks[0] + m.wonTricks[2]
	team1 := m.wonTricks[1] + m.wonTricks[3]
	if len(m.hands[0]) == 0 || team0 >= winningTricks || team1 >= winningTricks {
		m.endRound()
		res.RoundOver = true
		res.MatchOver = m.phase == PhaseGameOver
		res.Scores = m.scores
	}
	return res, nil
}

func (m *Match) endRound() {
	team0 := m.wonTricks[0] + m.wonTricks[2]
	team1 := m.wonTricks[1] + m.wonTricks[3]
	winningTeam := 1
	if team0 > team1 {
		winningTeam = 0
	}
	m.scores[winningTeam]++
	// the hakem keeps the seat while their team takes the round
	if m.hakem.Team() != winningTeam {
		m.hakem = m.hakem.Next()
	}
	if m.scores[winningTeam] >= winningScore {
		m.phase = PhaseGameOver
	} else {
		m.phase = PhaseRoundOver
	}
}

func (m *Match) holds(seat Seat, card Card) bool {
	for _, c := range m.hands[seat] {
		if c == card {
			return true
		}
	}
	return false
}

func (m *Match) hasSuit(seat Seat, suit Suit) bool {
	for _, c := range m.hands[seat] {
		if c.Suit == suit {
			return true
		}
	}
	return false
}

func (m *Match) removeCard(seat Seat, card Card) {
	hand := m.hands[seat]
	for i, c := range hand {
		if c == card {
			m.hands[seat] = append(hand[:i], hand[i+1:]...)
			return
		}
	}
	debug.Assert(false, "removeCard called for a card not in hand")
}

// trickWinner picks the highest trump if any trump was played, otherwise the
// highest card of the led suit.
func trickWinner(trick []PlayedCard, trump Suit) Seat {
	debug.Assert(len(trick) > 0)
	best := trick[0]
	for _, play := range trick[1:] {
		if beats(play.Card, best.Card, trick[0].Card.Suit, trump) {
			best = play
		}
	}
	return best.Seat
}

func beats(card, best Card, led, trump Suit) bool {
	if best.Suit == trump {
		return card.Suit == trump && card.Rank.Value() > best.Rank.Value()
	}
	if card.Suit == trump {
		return true
	}
	return card.Suit == led && best.Suit == led && card.Rank.Value() > best.Rank.Value()
}
