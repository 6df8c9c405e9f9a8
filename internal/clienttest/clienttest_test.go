package clienttest_test

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/matryer/is"
	"github.com/mvonline/hokmv2/internal/gameclient"
	"github.com/mvonline/hokmv2/internal/gameserver"
	"github.com/mvonline/hokmv2/internal/gamestate"
	"github.com/mvonline/hokmv2/internal/hokm"
	"github.com/mvonline/hokmv2/internal/protocol"
)

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

// waitFor polls cond until it holds or the deadline passes. The client's
// receive path is async, so tests converge instead of sleeping blind.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type table struct {
	stores  [hokm.NumSeats]*gamestate.Store
	clients [hokm.NumSeats]*gameclient.Client
}

// newTable connects four clients and waits until each holds a synchronized
// Waiting-phase view of its own seat.
func newTable(t *testing.T, ctx context.Context, url string) *table {
	t.Helper()
	tbl := &table{}
	for i := range tbl.clients {
		tbl.stores[i] = gamestate.NewStore(nil)
		tbl.clients[i] = gameclient.New(gameclient.Config{URL: url}, tbl.stores[i], nil)
		tbl.clients[i].Connect(ctx)
		t.Cleanup(tbl.clients[i].Disconnect)

		store := tbl.stores[i]
		seat := hokm.Seat(i)
		waitFor(t, "welcome snapshot", func() bool {
			if !store.Synchronized() {
				return false
			}
			st := store.GetState()
			return st.Phase == hokm.PhaseWaiting && st.LocalPlayerID == seat
		})
	}
	return tbl
}

func (tbl *table) phase(seat hokm.Seat) hokm.Phase {
	return tbl.stores[seat].GetState().Phase
}

// legalCard picks a card the server must accept: follow the led suit when
// the hand has it, otherwise anything.
func legalCard(st hokm.GameState) hokm.Card {
	hand := st.Player(st.LocalPlayerID).Hand
	if len(st.CurrentTrick.CardsPlayed) > 0 {
		led := st.CurrentTrick.CardsPlayed[0].Card.Suit
		for _, c := range hand {
			if c.Suit == led {
				return c
			}
		}
	}
	return hand[0]
}

func TestFullTrickOverTheWire(t *testing.T) {
	is := is.New(t)

	ts := httptest.NewServer(gameserver.NewServer(nil))
	defer ts.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tbl := newTable(t, ctx, wsURL(ts))

	for _, client := range tbl.clients {
		is.NoErr(client.Ready())
	}
	for seat := hokm.Seat(0); seat < hokm.NumSeats; seat++ {
		waitFor(t, "deal", func() bool { return tbl.phase(seat) == hokm.PhaseTrumpSelection })
	}

	// the hakem declares the suit of their strongest packet card
	hakemState := tbl.stores[0].GetState()
	hakem := hakemState.Hakem
	is.Equal(hakem, hokm.Seat(0)) // first round, first seat
	is.Equal(len(hakemState.Player(hakem).Hand), 5)

	trump := hakemState.Player(hakem).Hand[0].Suit
	is.NoErr(tbl.clients[hakem].ChooseTrump(trump))

	for seat := hokm.Seat(0); seat < hokm.NumSeats; seat++ {
		store := tbl.stores[seat]
		waitFor(t, "full deal after trump", func() bool {
			st := store.GetState()
			if st.Phase != hokm.PhasePlaying || st.TrumpSuit != trump {
				return false
			}
			local := st.Player(st.LocalPlayerID)
			return local.HandSize == 13 && st.CurrentTrick.TurnOwner == hakem
		})
	}

	// play one full trick, each seat in turn
	for played := 0; played < hokm.NumSeats; played++ {
		var turn hokm.Seat
		waitFor(t, "turn to settle", func() bool {
			st := tbl.stores[0].GetState()
			if st.Phase != hokm.PhasePlaying || len(st.CurrentTrick.CardsPlayed) != played {
				return false
			}
			turn = st.CurrentTrick.TurnOwner
			return true
		})

		store := tbl.stores[turn]
		waitFor(t, "turn owner to catch up", func() bool {
			st := store.GetState()
			return st.Phase == hokm.PhasePlaying &&
				len(st.CurrentTrick.CardsPlayed) == played &&
				st.CurrentTrick.TurnOwner == turn
		})
		is.NoErr(tbl.clients[turn].PlayCard(legalCard(store.GetState())))
	}

	// the trick resolves everywhere: table cleared, one trick credited,
	// winner on lead
	for seat := hokm.Seat(0); seat < hokm.NumSeats; seat++ {
		store := tbl.stores[seat]
		waitFor(t, "trick resolution", func() bool {
			st := store.GetState()
			if st.Phase != hokm.PhasePlaying || len(st.CurrentTrick.CardsPlayed) != 0 {
				return false
			}
			total := 0
			for _, p := range st.Players {
				total += p.WonTricks
			}
			return total == 1
		})
		st := store.GetState()
		is.Equal(st.CurrentTrick.TurnOwner, st.CurrentTrick.Leader)
		is.Equal(st.Player(st.LocalPlayerID).HandSize, 12)
	}
}

func TestPlayOutOfTurnFailsLocally(t *testing.T) {
	is := is.New(t)

	ts := httptest.NewServer(gameserver.NewServer(nil))
	defer ts.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tbl := newTable(t, ctx, wsURL(ts))
	for _, client := range tbl.clients {
		is.NoErr(client.Ready())
	}
	for seat := hokm.Seat(0); seat < hokm.NumSeats; seat++ {
		waitFor(t, "deal", func() bool { return tbl.phase(seat) == hokm.PhaseTrumpSelection })
	}

	// seat 1 is not the hakem and cannot act out of phase or turn; both
	// checks fail before any network round-trip
	var illegal *gameclient.IllegalActionError
	err := tbl.clients[1].ChooseTrump(hokm.Hearts)
	is.True(errors.As(err, &illegal))

	st := tbl.stores[1].GetState()
	err = tbl.clients[1].PlayCard(st.Player(1).Hand[0])
	is.True(errors.As(err, &illegal))
}

func TestMalformedServerFrameIsDropped(t *testing.T) {
	is := is.New(t)

	st := hokm.GameState{
		Phase: hokm.PhasePlaying,
		Players: []hokm.PlayerView{
			{ID: 0, HandSize: 1, Hand: []hokm.Card{{Rank: hokm.King, Suit: hokm.Hearts}}},
			{ID: 1, HandSize: 1},
			{ID: 2, HandSize: 1},
			{ID: 3, HandSize: 1},
		},
		TrumpSuit:     hokm.Spades,
		CurrentTrick:  hokm.TrickState{Leader: 2, TurnOwner: 2},
		Hakem:         2,
		LocalPlayerID: 0,
	}
	snapshot, err := protocol.Encode(protocol.Snapshot{State: st})
	is.NoErr(err)
	delta, err := protocol.Encode(protocol.Delta{
		Kind: protocol.DeltaCardPlayed,
		CardPlayed: &protocol.CardPlayedPayload{
			Player: 2,
			Card:   hokm.Card{Rank: hokm.Ace, Suit: hokm.Spades},
		},
	})
	is.NoErr(err)

	// scripted server: snapshot, then garbage, then a valid delta
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		ctx := context.Background()
		for _, frame := range [][]byte{snapshot, []byte(`{"type":"FooBar"}`), delta} {
			if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
				return
			}
		}
		// hold the connection open until the client hangs up
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}))
	defer ts.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := gamestate.NewStore(nil)
	client := gameclient.New(gameclient.Config{URL: wsURL(ts)}, store, nil)
	client.Connect(ctx)
	defer client.Disconnect()

	// the delta sent after the garbage frame still lands, so the garbage
	// was dropped without tearing the connection down
	waitFor(t, "delta past the garbage frame", func() bool {
		return len(store.GetState().CurrentTrick.CardsPlayed) == 1
	})
	is.True(store.Synchronized())
	is.Equal(client.State(), gameclient.StateConnected)
}

// connTrackingListener remembers accepted connections so a test can cut
// them, simulating a network drop the server did not initiate.
type connTrackingListener struct {
	net.Listener

	mu    sync.Mutex
	conns []net.Conn
}

func (l *connTrackingListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.conns = append(l.conns, conn)
	l.mu.Unlock()
	return conn, nil
}

func (l *connTrackingListener) dropAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, conn := range l.conns {
		_ = conn.Close()
	}
	l.conns = nil
}

func TestClientReconnectsAndResumesSeat(t *testing.T) {
	is := is.New(t)

	inner, err := net.Listen("tcp", "127.0.0.1:0")
	is.NoErr(err)
	listener := &connTrackingListener{Listener: inner}
	httpServer := &http.Server{Handler: gameserver.NewServer(nil)}
	go func() { _ = httpServer.Serve(listener) }()
	defer httpServer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	url := "ws://" + inner.Addr().String() + "/ws"
	store := gamestate.NewStore(nil)
	client := gameclient.New(gameclient.Config{
		URL:         url,
		BackoffBase: 10 * time.Millisecond,
		BackoffCap:  50 * time.Millisecond,
	}, store, nil)
	client.Connect(ctx)
	defer client.Disconnect()

	waitFor(t, "first sync", func() bool { return store.Synchronized() })
	seat := store.GetState().LocalPlayerID

	// cut the wire under the client
	listener.dropAll()
	waitFor(t, "desync on drop", func() bool { return !store.Synchronized() })

	// the client redials with its session token and lands on its old
	// seat with a fresh snapshot
	waitFor(t, "resync after reconnect", func() bool { return store.Synchronized() })
	is.Equal(store.GetState().LocalPlayerID, seat)
	is.Equal(client.State(), gameclient.StateConnected)
}
