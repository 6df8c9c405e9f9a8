package protocol_test

import (
	"errors"
	"testing"

	"github.com/matryer/is"
	"github.com/mvonline/hokmv2/internal/hokm"
	"github.com/mvonline/hokmv2/internal/protocol"
)

func TestDecodeRejectsBadFrames(t *testing.T) {
	testCases := []struct {
		name string
		raw  string
	}{
		{"malformed json", `{"type":"PlayCard"`},
		{"not an object", `42`},
		{"missing type tag", `{"card":{"rank":"Ace","suit":"Spades"}}`},
		{"unknown type", `{"type":"FooBar"}`},
		{"play card without card", `{"type":"PlayCard"}`},
		{"play card with bad rank", `{"type":"PlayCard","card":{"rank":"Eleven","suit":"Spades"}}`},
		{"choose trump with bad suit", `{"type":"ChooseTrump","suit":"Stars"}`},
		{"snapshot without state", `{"type":"Snapshot"}`},
		{"snapshot with bad phase", `{"type":"Snapshot","state":{"phase":"Lobby","currentTrick":{"cardsPlayed":[],"leader":0,"turnOwner":0},"scores":[0,0],"hakem":0,"localPlayerId":0}}`},
		{"delta with unknown kind", `{"type":"Delta","kind":"CardsShuffled","payload":{}}`},
		{"card played by seat 4", `{"type":"Delta","kind":"CardPlayed","payload":{"player":4,"card":{"rank":"Ace","suit":"Spades"}}}`},
		{"trick resolved without winner in range", `{"type":"Delta","kind":"TrickResolved","payload":{"winner":-1}}`},
		{"error without reason", `{"type":"Error"}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			is := is.New(t)
			msg, err := protocol.Decode([]byte(tc.raw))
			is.True(msg == nil)
			var decodeErr *protocol.DecodeError
			is.True(errors.As(err, &decodeErr))
		})
	}
}

func TestDecodeClientMessages(t *testing.T) {
	is := is.New(t)

	msg, err := protocol.Decode([]byte(`{"type":"PlayCard","card":{"rank":"Ace","suit":"Spades"}}`))
	is.NoErr(err)
	is.Equal(msg, protocol.PlayCard{Card: hokm.Card{Rank: hokm.Ace, Suit: hokm.Spades}})

	msg, err = protocol.Decode([]byte(`{"type":"ChooseTrump","suit":"Hearts"}`))
	is.NoErr(err)
	is.Equal(msg, protocol.ChooseTrump{Suit: hokm.Hearts})

	msg, err = protocol.Decode([]byte(`{"type":"Ready"}`))
	is.NoErr(err)
	is.Equal(msg, protocol.Ready{})
}

func TestDecodeSnapshot(t *testing.T) {
	is := is.New(t)

	raw := `{"type":"Snapshot","sessionToken":"tok","state":{
		"phase":"Playing",
		"players":[
			{"id":0,"handSize":1,"wonTricks":0,"hand":[{"rank":"King","suit":"Clubs"}]},
			{"id":1,"handSize":1,"wonTricks":0},
			{"id":2,"handSize":1,"wonTricks":1},
			{"id":3,"handSize":1,"wonTricks":0}
		],
		"trumpSuit":"Spades",
		"currentTrick":{"cardsPlayed":[],"leader":2,"turnOwner":2},
		"scores":[0,0],
		"hakem":2,
		"localPlayerId":0
	}}`
	msg, err := protocol.Decode([]byte(raw))
	is.NoErr(err)

	snap, ok := msg.(protocol.Snapshot)
	is.True(ok)
	is.Equal(snap.SessionToken, "tok")
	is.Equal(snap.State.Phase, hokm.PhasePlaying)
	is.Equal(snap.State.CurrentTrick.TurnOwner, hokm.Seat(2))
	is.Equal(len(snap.State.Players), 4)
	is.Equal(snap.State.Players[0].Hand, []hokm.Card{{Rank: hokm.King, Suit: hokm.Clubs}})
}

func TestDecodeDeltas(t *testing.T) {
	is := is.New(t)

	msg, err := protocol.Decode([]byte(`{"type":"Delta","kind":"CardPlayed","payload":{"player":2,"card":{"rank":"Ace","suit":"Spades"}}}`))
	is.NoErr(err)
	d, ok := msg.(protocol.Delta)
	is.True(ok)
	is.Equal(d.Kind, protocol.DeltaCardPlayed)
	is.Equal(*d.CardPlayed, protocol.CardPlayedPayload{
		Player: 2,
		Card:   hokm.Card{Rank: hokm.Ace, Suit: hokm.Spades},
	})

	msg, err = protocol.Decode([]byte(`{"type":"Delta","kind":"PhaseChanged","payload":{"phase":"RoundOver"}}`))
	is.NoErr(err)
	d = msg.(protocol.Delta)
	is.Equal(d.PhaseChanged.Phase, hokm.PhaseRoundOver)

	msg, err = protocol.Decode([]byte(`{"type":"Delta","kind":"ScoreUpdated","payload":{"scores":[3,2],"resetTricks":true}}`))
	is.NoErr(err)
	d = msg.(protocol.Delta)
	is.Equal(d.ScoreUpdated.Scores, [2]int{3, 2})
	is.True(d.ScoreUpdated.ResetTricks)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	testCases := []struct {
		name string
		msg  protocol.Message
	}{
		{"play card", protocol.PlayCard{Card: hokm.Card{Rank: hokm.Ten, Suit: hokm.Diamonds}}},
		{"choose trump", protocol.ChooseTrump{Suit: hokm.Clubs}},
		{"ready", protocol.Ready{}},
		{"server error", protocol.ServerError{Reason: "not your turn", RelatedAction: "PlayCard"}},
		{"trick resolved", protocol.Delta{
			Kind:          protocol.DeltaTrickResolved,
			TrickResolved: &protocol.TrickResolvedPayload{Winner: 3},
		}},
		{"trump chosen", protocol.Delta{
			Kind:        protocol.DeltaTrumpChosen,
			TrumpChosen: &protocol.TrumpChosenPayload{Suit: hokm.Hearts},
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			is := is.New(t)
			data, err := protocol.Encode(tc.msg)
			is.NoErr(err)
			decoded, err := protocol.Decode(data)
			is.NoErr(err)
			is.Equal(decoded, tc.msg)
		})
	}
}

func TestEncodeDeltaWithoutPayload(t *testing.T) {
	is := is.New(t)

	_, err := protocol.Encode(protocol.Delta{Kind: protocol.DeltaCardPlayed})
	is.True(err != nil)
}
