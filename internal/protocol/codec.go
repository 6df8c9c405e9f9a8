package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/mvonline/hokmv2/internal/debug"
	"github.com/mvonline/hokmv2/internal/hokm"
)

// DecodeError reports a frame that could not be turned into a Message:
// malformed JSON, a missing or unknown type tag, or fields outside their
// enumerations. The connection survives a DecodeError; the frame is dropped.
type DecodeError struct {
	Raw    []byte
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode: %s (raw: %.128q)", e.Reason, e.Raw)
}

func decodeErrf(raw []byte, format string, args ...any) error {
	return &DecodeError{Raw: raw, Reason: fmt.Sprintf(format, args...)}
}

// Decode validates and parses one wire frame. It is a pure transform: on any
// failure it returns a nil Message and a *DecodeError, never a partially
// filled message and never a panic.
func Decode(data []byte) (Message, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, decodeErrf(data, "malformed json: %v", err)
	}
	switch env.Type {
	case "":
		return nil, decodeErrf(data, "missing type tag")
	case TypePlayCard:
		return decodePlayCard(data)
	case TypeChooseTrump:
		return decodeChooseTrump(data)
	case TypeReady:
		return Ready{}, nil
	case TypeSnapshot:
		return decodeSnapshot(data)
	case TypeDelta:
		return decodeDelta(data)
	case TypeError:
		return decodeServerError(data)
	default:
		return nil, decodeErrf(data, "unknown type %q", env.Type)
	}
}

func decodePlayCard(data []byte) (Message, error) {
	var m struct {
		Card *hokm.Card `json:"card"`
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, decodeErrf(data, "PlayCard: %v", err)
	}
	if m.Card == nil {
		return nil, decodeErrf(data, "PlayCard: missing card")
	}
	if !m.Card.Valid() {
		return nil, decodeErrf(data, "PlayCard: invalid card %s", *m.Card)
	}
	return PlayCard{Card: *m.Card}, nil
}

func decodeChooseTrump(data []byte) (Message, error) {
	var m struct {
		Suit hokm.Suit `json:"suit"`
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, decodeErrf(data, "ChooseTrump: %v", err)
	}
	if !m.Suit.Valid() {
		return nil, decodeErrf(data, "ChooseTrump: invalid suit %q", m.Suit)
	}
	return ChooseTrump{Suit: m.Suit}, nil
}

func decodeSnapshot(data []byte) (Message, error) {
	var m struct {
		State        *hokm.GameState `json:"state"`
		SessionToken string          `json:"sessionToken"`
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, decodeErrf(data, "Snapshot: %v", err)
	}
	if m.State == nil {
		return nil, decodeErrf(data, "Snapshot: missing state")
	}
	if err := checkState(m.State); err != nil {
		return nil, decodeErrf(data, "Snapshot: %v", err)
	}
	return Snapshot{State: *m.State, SessionToken: m.SessionToken}, nil
}

// checkState validates enumeration membership and field shape. Cross-field
// invariants (card conservation, turn ownership) are the store's job.
func checkState(st *hokm.GameState) error {
	if !st.Phase.Valid() {
		return fmt.Errorf("invalid phase %q", st.Phase)
	}
	if st.TrumpSuit != "" && !st.TrumpSuit.Valid() {
		return fmt.Errorf("invalid trump suit %q", st.TrumpSuit)
	}
	if !st.LocalPlayerID.Valid() {
		return fmt.Errorf("invalid local player id %d", st.LocalPlayerID)
	}
	if len(st.Players) > hokm.NumSeats {
		return fmt.Errorf("%d players", len(st.Players))
	}
	for _, p := range st.Players {
		if !p.ID.Valid() {
			return fmt.Errorf("invalid player id %d", p.ID)
		}
		if p.HandSize < 0 || p.WonTricks < 0 {
			return fmt.Errorf("negative counts for player %d", p.ID)
		}
		for _, c := range p.Hand {
			if !c.Valid() {
				return fmt.Errorf("invalid card %s in hand of player %d", c, p.ID)
			}
		}
	}
	if !st.CurrentTrick.Leader.Valid() || !st.CurrentTrick.TurnOwner.Valid() {
		return fmt.Errorf("invalid trick seats")
	}
	for _, play := range st.CurrentTrick.CardsPlayed {
		if !play.Seat.Valid() {
			return fmt.Errorf("invalid seat %d in trick", play.Seat)
		}
		if !play.Card.Valid() {
			return fmt.Errorf("invalid card %s in trick", play.Card)
		}
	}
	if st.Scores[0] < 0 || st.Scores[1] < 0 {
		return fmt.Errorf("negative score")
	}
	if !st.Hakem.Valid() {
		return fmt.Errorf("invalid hakem %d", st.Hakem)
	}
	return nil
}

func decodeDelta(data []byte) (Message, error) {
	var m struct {
		Kind    DeltaKind       `json:"kind"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, decodeErrf(data, "Delta: %v", err)
	}
	if len(m.Payload) == 0 {
		m.Payload = json.RawMessage("{}")
	}
	d := Delta{Kind: m.Kind}
	switch m.Kind {
	case DeltaCardPlayed:
		var p CardPlayedPayload
		if err := json.Unmarshal(m.Payload, &p); err != nil {
			return nil, decodeErrf(data, "CardPlayed payload: %v", err)
		}
		if !p.Player.Valid() {
			return nil, decodeErrf(data, "CardPlayed: invalid player %d", p.Player)
		}
		if !p.Card.Valid() {
			return nil, decodeErrf(data, "CardPlayed: invalid card %s", p.Card)
		}
		d.CardPlayed = &p
	case DeltaTrickResolved:
		var p TrickResolvedPayload
		if err := json.Unmarshal(m.Payload, &p); err != nil {
			return nil, decodeErrf(data, "TrickResolved payload: %v", err)
		}
		if !p.Winner.Valid() {
			return nil, decodeErrf(data, "TrickResolved: invalid winner %d", p.Winner)
		}
		d.TrickResolved = &p
	case DeltaTrumpChosen:
		var p TrumpChosenPayload
		if err := json.Unmarshal(m.Payload, &p); err != nil {
			return nil, decodeErrf(data, "TrumpChosen payload: %v", err)
		}
		if !p.Suit.Valid() {
			return nil, decodeErrf(data, "TrumpChosen: invalid suit %q", p.Suit)
		}
		d.TrumpChosen = &p
	case DeltaPhaseChanged:
		var p PhaseChangedPayload
		if err := json.Unmarshal(m.Payload, &p); err != nil {
			return nil, decodeErrf(data, "PhaseChanged payload: %v", err)
		}
		if !p.Phase.Valid() {
			return nil, decodeErrf(data, "PhaseChanged: invalid phase %q", p.Phase)
		}
		d.PhaseChanged = &p
	case DeltaScoreUpdated:
		var p ScoreUpdatedPayload
		if err := json.Unmarshal(m.Payload, &p); err != nil {
			return nil, decodeErrf(data, "ScoreUpdated payload: %v", err)
		}
		d.ScoreUpdated = &p
	default:
		return nil, decodeErrf(data, "unknown delta kind %q", m.Kind)
	}
	return d, nil
}

func decodeServerError(data []byte) (Message, error) {
	var m ServerError
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, decodeErrf(data, "Error: %v", err)
	}
	if m.Reason == "" {
		return nil, decodeErrf(data, "Error: missing reason")
	}
	return m, nil
}

// Encode renders a Message as one wire frame. Encoding only fails for a
// malformed Delta (payload not matching Kind), which is a programming error
// on the sending side.
func Encode(m Message) ([]byte, error) {
	switch m := m.(type) {
	case PlayCard:
		return marshal(struct {
			Type string    `json:"type"`
			Card hokm.Card `json:"card"`
		}{TypePlayCard, m.Card})
	case ChooseTrump:
		return marshal(struct {
			Type string    `json:"type"`
			Suit hokm.Suit `json:"suit"`
		}{TypeChooseTrump, m.Suit})
	case Ready:
		return marshal(struct {
			Type string `json:"type"`
		}{TypeReady})
	case Snapshot:
		return marshal(struct {
			Type         string         `json:"type"`
			State        hokm.GameState `json:"state"`
			SessionToken string         `json:"sessionToken,omitempty"`
		}{TypeSnapshot, m.State, m.SessionToken})
	case Delta:
		payload, err := deltaPayload(m)
		if err != nil {
			return nil, err
		}
		return marshal(struct {
			Type    string    `json:"type"`
			Kind    DeltaKind `json:"kind"`
			Payload any       `json:"payload"`
		}{TypeDelta, m.Kind, payload})
	case ServerError:
		return marshal(struct {
			Type string `json:"type"`
			ServerError
		}{TypeError, m})
	default:
		debug.Assert(false, fmt.Sprintf("unencodable message %T", m))
		return nil, nil
	}
}

func deltaPayload(d Delta) (any, error) {
	var payload any
	switch d.Kind {
	case DeltaCardPlayed:
		if d.CardPlayed != nil {
			payload = d.CardPlayed
		}
	case DeltaTrickResolved:
		if d.TrickResolved != nil {
			payload = d.TrickResolved
		}
	case DeltaTrumpChosen:
		if d.TrumpChosen != nil {
			payload = d.TrumpChosen
		}
	case DeltaPhaseChanged:
		if d.PhaseChanged != nil {
			payload = d.PhaseChanged
		}
	case DeltaScoreUpdated:
		if d.ScoreUpdated != nil {
			payload = d.ScoreUpdated
		}
	default:
		return nil, fmt.Errorf("encode: unknown delta kind %q", d.Kind)
	}
	if payload == nil {
		return nil, fmt.Errorf("encode: delta %q without matching payload", d.Kind)
	}
	return payload, nil
}

func marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	// every wire struct above is marshalable
	debug.Assert(err == nil)
	return data, nil
}
