// Package protocol is the wire boundary: a closed union of message kinds
// carried as JSON text, one message per frame. Values of these types exist
// only through Decode's validation (inbound) or the builders in gameclient
// and gameserver (outbound); nothing downstream touches raw JSON.
package protocol

import "github.com/mvonline/hokmv2/internal/hokm"

// Message is the tagged union over every wire message kind.
type Message interface{ isMessage() }

// wire values of the "type" discriminator field
const (
	TypePlayCard    = "PlayCard"
	TypeChooseTrump = "ChooseTrump"
	TypeReady       = "Ready"
	TypeSnapshot    = "Snapshot"
	TypeDelta       = "Delta"
	TypeError       = "Error"
)

// PlayCard (client -> server) asks to play one card from the hand.
type PlayCard struct {
	Card hokm.Card `json:"card"`
}

// ChooseTrump (client -> server) is sent only by the hakem when prompted.
type ChooseTrump struct {
	Suit hokm.Suit `json:"suit"`
}

// Ready (client -> server) signals the seat is ready for the next round.
type Ready struct{}

// Snapshot (server -> client) replaces the client's state wholesale.
// SessionToken rides along on the welcome snapshot so the client can resume
// its seat after a drop.
type Snapshot struct {
	State        hokm.GameState `json:"state"`
	SessionToken string         `json:"sessionToken,omitempty"`
}

// ServerError (server -> client) reports a rejected action or other
// server-side complaint. Wire type tag: "Error".
type ServerError struct {
	Reason        string `json:"reason"`
	RelatedAction string `json:"relatedAction,omitempty"`
}

func (PlayCard) isMessage()    {}
func (ChooseTrump) isMessage() {}
func (Ready) isMessage()       {}
func (Snapshot) isMessage()    {}
func (Delta) isMessage()       {}
func (ServerError) isMessage() {}

// DeltaKind discriminates the payload of a Delta message.
type DeltaKind string

const (
	DeltaCardPlayed    DeltaKind = "CardPlayed"
	DeltaTrickResolved DeltaKind = "TrickResolved"
	DeltaTrumpChosen   DeltaKind = "TrumpChosen"
	DeltaPhaseChanged  DeltaKind = "PhaseChanged"
	DeltaScoreUpdated  DeltaKind = "ScoreUpdated"
)

// Delta (server -> client) is one incremental, order-dependent state change.
// Exactly the payload field matching Kind is non-nil; Decode guarantees this
// for inbound deltas.
type Delta struct {
	Kind          DeltaKind
	CardPlayed    *CardPlayedPayload
	TrickResolved *TrickResolvedPayload
	TrumpChosen   *TrumpChosenPayload
	PhaseChanged  *PhaseChangedPayload
	ScoreUpdated  *ScoreUpdatedPayload
}

type CardPlayedPayload struct {
	Player hokm.Seat `json:"player"`
	Card   hokm.Card `json:"card"`
}

type TrickResolvedPayload struct {
	Winner hokm.Seat `json:"winner"`
}

type TrumpChosenPayload struct {
	Suit hokm.Suit `json:"suit"`
}

type PhaseChangedPayload struct {
	Phase hokm.Phase `json:"phase"`
}

type ScoreUpdatedPayload struct {
	Scores [2]int `json:"scores"`
	// ResetTricks zeroes every seat's trick count, used at round boundaries.
	ResetTricks bool `json:"resetTricks,omitempty"`
}
