// Package gameserver is the authoritative table: one four-seat Hokm match
// behind a WebSocket endpoint. It exists so the client core has a real
// counterpart to run against (binaries and integration tests); rule
// decisions are delegated to internal/hokm.
package gameserver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/mvonline/hokmv2/internal/debug"
	"github.com/mvonline/hokmv2/internal/hokm"
	"github.com/mvonline/hokmv2/internal/protocol"
	"github.com/phuslu/log"
)

const (
	writeTimeout = 3 * time.Second
	readTimeout  = 5 * time.Minute
)

type session struct {
	token string
	seat  hokm.Seat
	ready bool // guarded by Server.mu

	// connMu guards conn and serializes writes. conn is nil while the
	// seat's player is disconnected; the session lingers so the seat
	// survives a drop and can be resumed by token.
	connMu sync.Mutex
	conn   *websocket.Conn
}

func (sess *session) setConn(conn *websocket.Conn) {
	sess.connMu.Lock()
	sess.conn = conn
	sess.connMu.Unlock()
}

func (sess *session) clearConn(conn *websocket.Conn) {
	sess.connMu.Lock()
	if sess.conn == conn {
		sess.conn = nil
	}
	sess.connMu.Unlock()
}

type Server struct {
	logger *log.Logger
	mux    *http.ServeMux

	mu       sync.Mutex
	match    *hokm.Match
	seats    [hokm.NumSeats]*session
	sessions map[uint64]*session // keyed by xxhash of the session token
}

func NewServer(logger *log.Logger) *Server {
	// if logger is nil (which might be true in tests) => use default, but
	// silenced logger
	if logger == nil {
		tmp := log.DefaultLogger
		logger = &tmp
		logger.Writer = &log.IOWriter{Writer: io.Discard}
	}
	s := &Server{
		logger:   logger,
		match:    hokm.NewMatch(),
		sessions: make(map[uint64]*session),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	s.mux = mux
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func tokenKey(token string) uint64 {
	return xxhash.Sum64String(token)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("could not accept websocket")
		return
	}

	sess, err := s.attach(conn, r.URL.Query().Get("token"))
	if err != nil {
		s.logger.Warn().Err(err).Msg("rejecting connection")
		_ = s.writeMessage(conn, protocol.ServerError{Reason: err.Error()})
		_ = conn.Close(websocket.StatusPolicyViolation, err.Error())
		return
	}
	s.logger.Info().Int("seat", int(sess.seat)).Msg("player attached")

	// full resync on every attach: the welcome snapshot carries the
	// session token so the client can resume the seat later
	s.mu.Lock()
	snap := s.snapshotFor(sess)
	snap.SessionToken = sess.token
	s.mu.Unlock()
	_ = s.sendTo(sess, snap)

	s.readLoop(r.Context(), sess, conn)
}

// attach binds a connection to a seat: a valid resume token reclaims its
// old seat, otherwise the next free seat is taken. A fifth player is
// refused.
func (s *Server) attach(conn *websocket.Conn, token string) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token != "" {
		if sess, ok := s.sessions[tokenKey(token)]; ok {
			sess.connMu.Lock()
			if old := sess.conn; old != nil {
				_ = old.Close(websocket.StatusPolicyViolation, "seat resumed elsewhere")
			}
			sess.conn = conn
			sess.connMu.Unlock()
			return sess, nil
		}
	}

	for seat := hokm.Seat(0); seat < hokm.NumSeats; seat++ {
		if s.seats[seat] == nil {
			sess := &session{
				token: uuid.NewString(),
				seat:  seat,
				conn:  conn,
			}
			s.seats[seat] = sess
			s.sessions[tokenKey(sess.token)] = sess
			return sess, nil
		}
	}
	return nil, fmt.Errorf("table is full")
}

func (s *Server) readLoop(ctx context.Context, sess *session, conn *websocket.Conn) {
	defer func() {
		sess.clearConn(conn)
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
		s.logger.Info().Int("seat", int(sess.seat)).Msg("player detached")
	}()

	for {
		readCtx, cancel := context.WithTimeout(ctx, readTimeout)
		_, data, err := conn.Read(readCtx)
		cancel()
		if err != nil {
			return
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			// malformed frames are logged and dropped, the
			// connection stays open
			s.logger.Warn().Err(err).Int("seat", int(sess.seat)).Msg("dropping frame")
			continue
		}
		s.handle(sess, msg)
	}
}

func (s *Server) handle(sess *session, msg protocol.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch m := msg.(type) {
	case protocol.Ready:
		s.handleReady(sess)
	case protocol.ChooseTrump:
		if err := s.match.DeclareTrump(sess.seat, m.Suit); err != nil {
			s.replyError(sess, err, protocol.TypeChooseTrump)
			return
		}
		s.broadcast(protocol.Delta{
			Kind:        protocol.DeltaTrumpChosen,
			TrumpChosen: &protocol.TrumpChosenPayload{Suit: m.Suit},
		})
		// declaring trump also deals the held-back cards; hands are
		// per-seat secrets a broadcast delta cannot carry
		s.broadcastSnapshots()
	case protocol.PlayCard:
		res, err := s.match.PlayCard(sess.seat, m.Card)
		if err != nil {
			s.replyError(sess, err, protocol.TypePlayCard)
			return
		}
		s.broadcastPlay(res)
	default:
		// server->client kinds arriving from a client are drift
		s.logger.Warn().Msgf("dropping unexpected %T from seat %d", m, sess.seat)
	}
}

func (s *Server) handleReady(sess *session) {
	phase := s.match.Phase()
	if phase != hokm.PhaseWaiting && phase != hokm.PhaseRoundOver {
		s.replyError(sess, fmt.Errorf("round already in progress"), protocol.TypeReady)
		return
	}
	sess.ready = true
	for _, other := range s.seats {
		if other == nil || !other.ready {
			return
		}
	}
	// all four seats ready: deal and prompt the hakem
	err := s.match.StartRound()
	debug.Assert(err == nil)
	for _, other := range s.seats {
		other.ready = false
	}
	s.logger.Info().Int("hakem", int(s.match.Hakem())).Msg("round started")
	s.broadcastSnapshots()
}

// broadcastPlay turns one accepted play into the delta sequence the clients
// apply: the card, then the trick resolution, then score/phase changes at
// round boundaries.
func (s *Server) broadcastPlay(res hokm.PlayResult) {
	s.broadcast(protocol.Delta{
		Kind: protocol.DeltaCardPlayed,
		CardPlayed: &protocol.CardPlayedPayload{
			Player: res.Play.Seat,
			Card:   res.Play.Card,
		},
	})
	if res.TrickWinner == nil {
		return
	}
	s.broadcast(protocol.Delta{
		Kind:          protocol.DeltaTrickResolved,
		TrickResolved: &protocol.TrickResolvedPayload{Winner: *res.TrickWinner},
	})
	if !res.RoundOver {
		return
	}
	s.broadcast(protocol.Delta{
		Kind:         protocol.DeltaScoreUpdated,
		ScoreUpdated: &protocol.ScoreUpdatedPayload{Scores: res.Scores},
	})
	phase := hokm.PhaseRoundOver
	if res.MatchOver {
		phase = hokm.PhaseGameOver
	}
	s.broadcast(protocol.Delta{
		Kind:         protocol.DeltaPhaseChanged,
		PhaseChanged: &protocol.PhaseChangedPayload{Phase: phase},
	})
}

// snapshotFor builds the redacted view for one seat: only that seat's hand
// travels, everyone else is a count. Callers hold s.mu.
func (s *Server) snapshotFor(sess *session) protocol.Snapshot {
	st := hokm.GameState{
		Phase:     s.match.Phase(),
		TrumpSuit: s.match.Trump(),
		CurrentTrick: hokm.TrickState{
			CardsPlayed: s.match.Trick(),
			Leader:      s.match.Leader(),
			TurnOwner:   s.match.Turn(),
		},
		Scores:        s.match.Scores(),
		Hakem:         s.match.Hakem(),
		LocalPlayerID: sess.seat,
	}
	for seat := hokm.Seat(0); seat < hokm.NumSeats; seat++ {
		if s.seats[seat] == nil {
			continue
		}
		pv := hokm.PlayerView{
			ID:        seat,
			HandSize:  s.match.HandSize(seat),
			WonTricks: s.match.WonTricks(seat),
		}
		if seat == sess.seat {
			pv.Hand = s.match.Hand(seat)
		}
		st.Players = append(st.Players, pv)
	}
	return protocol.Snapshot{State: st}
}

// broadcastSnapshots resyncs every attached seat with its own redacted
// view, used at round boundaries where a delta would not do.
func (s *Server) broadcastSnapshots() {
	for _, sess := range s.seats {
		if sess == nil {
			continue
		}
		_ = s.sendTo(sess, s.snapshotFor(sess))
	}
}

// broadcast sends one message to every attached seat, aggregating per-seat
// failures; a dead connection is logged, its seat stays resumable.
func (s *Server) broadcast(msg protocol.Message) {
	var errs error
	for _, sess := range s.seats {
		if sess == nil {
			continue
		}
		if err := s.sendTo(sess, msg); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if errs != nil {
		s.logger.Error().Err(errs).Msg("broadcast failed for some seats")
	}
}

func (s *Server) replyError(sess *session, err error, relatedAction string) {
	s.logger.Debug().
		Err(err).
		Int("seat", int(sess.seat)).
		Str("action", relatedAction).
		Msg("rejected action")
	_ = s.sendTo(sess, protocol.ServerError{
		Reason:        err.Error(),
		RelatedAction: relatedAction,
	})
}

func (s *Server) sendTo(sess *session, msg protocol.Message) error {
	sess.connMu.Lock()
	defer sess.connMu.Unlock()
	if sess.conn == nil {
		// detached seats silently miss broadcasts; the resume
		// snapshot catches them up
		return nil
	}
	if err := s.writeMessage(sess.conn, msg); err != nil {
		return fmt.Errorf("seat %d: %w", sess.seat, err)
	}
	return nil
}

func (s *Server) writeMessage(conn *websocket.Conn, msg protocol.Message) error {
	data, err := protocol.Encode(msg)
	debug.Assert(err == nil)

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}
