package lobby

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/skeesen8/blackjack/internal/engine"
	"github.com/skeesen8/blackjack/internal/history"
	"github.com/skeesen8/blackjack/internal/registry"
	"github.com/skeesen8/blackjack/pkg/types"
)

const testDelay = 50 * time.Millisecond

// blackjackTable deals p1 a natural against a dealer 16, so a single bet
// settles the round.
func blackjackTable() *engine.Table {
	t := engine.NewTable("test", engine.DefaultRules(), engine.WithID("t1"))
	t.Deck = engine.StackedDeck(
		engine.C(engine.RankTen, engine.SuitDiamonds), engine.C(engine.RankNine, engine.SuitClubs),
		engine.C(engine.RankAce, engine.SuitSpades), engine.C(engine.RankSeven, engine.SuitHearts),
	)
	return t
}

type memRecorder struct {
	mu     sync.Mutex
	rounds []history.Round
}

func (m *memRecorder) Record(_ context.Context, r history.Round) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rounds = append(m.rounds, r)
	return nil
}

func (m *memRecorder) Close() error { return nil }

func (m *memRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rounds)
}

func newTestLobby(t *testing.T, tbl *engine.Table, rec history.Recorder) *Lobby {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewLobby(ctx, tbl, Deps{Recorder: rec, NewRoundDelay: testDelay})
}

// send posts one envelope and waits until the lobby has handled it.
func send(t *testing.T, l *Lobby, from registry.Conn, msg types.ClientMessage) {
	t.Helper()
	done := make(chan struct{})
	l.Inbox() <- Inbound{From: from, Msg: msg, Done: done}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for %s to be handled", msg.Type)
	}
}

func recvView(t *testing.T, l *Lobby) View {
	t.Helper()
	reply := make(chan View, 1)
	l.Inbox() <- GetState{Reply: reply}
	select {
	case v := <-reply:
		return v
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for view")
		return View{} // unreachable
	}
}

func countType(t *testing.T, c *registry.Capture, typ string) int {
	t.Helper()
	n := 0
	for _, raw := range c.Messages() {
		var m types.ServerMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			t.Fatalf("bad message %s: %v", raw, err)
		}
		if m.Type == typ {
			n++
		}
	}
	return n
}

func waitForType(t *testing.T, c *registry.Capture, typ string, within time.Duration) {
	t.Helper()
	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		if countType(t, c, typ) > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no %s within %v", typ, within)
}

func amount(v int) *int { return &v }

func joinAndBet(t *testing.T, l *Lobby, c registry.Conn) {
	t.Helper()
	l.Inbox() <- Attach{Conn: c}
	send(t, l, c, types.ClientMessage{Type: types.MsgJoinTable, PlayerID: "p1", PlayerName: "alice"})
	send(t, l, c, types.ClientMessage{Type: types.MsgPlaceBet, PlayerID: "p1", Amount: amount(100)})
}

func TestLobby_Join_BroadcastsAndPublishesSummary(t *testing.T) {
	l := newTestLobby(t, blackjackTable(), nil)
	c := registry.NewCapture("c1")

	l.Inbox() <- Attach{Conn: c}
	send(t, l, c, types.ClientMessage{Type: types.MsgJoinTable, PlayerID: "p1", PlayerName: "alice"})

	if n := countType(t, c, types.MsgPlayerJoined); n != 1 {
		t.Fatalf("want 1 player_joined, got %d", n)
	}
	v := recvView(t, l)
	if v.NumConns != 1 || len(v.Table.Players) != 1 {
		t.Fatalf("unexpected view %+v", v)
	}
	if s := l.Summary(); s.PlayerCount != 1 || s.State != string(engine.PhaseWaiting) {
		t.Fatalf("summary not published: %+v", s)
	}

	l.Inbox() <- Shutdown{}
}

func TestLobby_RoundFinish_RecordsAndAutoAdvances(t *testing.T) {
	rec := &memRecorder{}
	l := newTestLobby(t, blackjackTable(), rec)
	c := registry.NewCapture("c1")

	joinAndBet(t, l, c)

	if n := countType(t, c, types.MsgGameFinished); n != 1 {
		t.Fatalf("want game_finished, got %d", n)
	}
	if rec.count() != 1 {
		t.Fatalf("want 1 recorded round, got %d", rec.count())
	}
	if v := recvView(t, l); !v.TimerArmed || v.Table.Phase != string(engine.PhaseFinished) {
		t.Fatalf("timer should be armed on a finished table: %+v", v)
	}

	waitForType(t, c, types.MsgNewRoundStarted, 20*testDelay)
	v := recvView(t, l)
	if v.TimerArmed || v.Table.Phase != string(engine.PhaseWaiting) {
		t.Fatalf("want waiting with no timer, got %+v", v)
	}
	if v.Table.Players[0].Chips != 1150 {
		t.Fatalf("chips should carry over, got %d", v.Table.Players[0].Chips)
	}
}

func TestLobby_ManualNewRound_DisarmsTimer(t *testing.T) {
	l := newTestLobby(t, blackjackTable(), nil)
	c := registry.NewCapture("c1")
	joinAndBet(t, l, c)

	send(t, l, c, types.ClientMessage{Type: types.MsgNewRound})
	if v := recvView(t, l); v.TimerArmed {
		t.Fatalf("manual new round should disarm the timer")
	}

	time.Sleep(3 * testDelay)
	if n := countType(t, c, types.MsgNewRoundStarted); n != 1 {
		t.Fatalf("want exactly the manual new_round_started, got %d", n)
	}
}

func TestLobby_TimerGen_DropsStaleFires(t *testing.T) {
	l := newTestLobby(t, blackjackTable(), nil)
	c := registry.NewCapture("c1")
	joinAndBet(t, l, c)

	// A fire from an older generation is ignored even if it reaches the inbox.
	l.Inbox() <- autoNewRound{gen: -1}
	if v := recvView(t, l); v.Table.Phase != string(engine.PhaseFinished) || !v.TimerArmed {
		t.Fatalf("stale fire must be a no-op: %+v", v)
	}
}

func TestLobby_EmptyTable_CancelsTimer(t *testing.T) {
	l := newTestLobby(t, blackjackTable(), nil)
	c := registry.NewCapture("c1")
	joinAndBet(t, l, c)

	send(t, l, c, types.ClientMessage{Type: types.MsgLeaveTable, PlayerID: "p1"})
	if v := recvView(t, l); v.TimerArmed {
		t.Fatalf("leaving the last seat should cancel the timer")
	}

	time.Sleep(3 * testDelay)
	if n := countType(t, c, types.MsgNewRoundStarted); n != 0 {
		t.Fatalf("no new round expected on an empty table, got %d", n)
	}
}

func TestLobby_Shutdown_StopsTimer_NoFire(t *testing.T) {
	l := newTestLobby(t, blackjackTable(), nil)
	c := registry.NewCapture("c1")
	joinAndBet(t, l, c)

	done := make(chan struct{})
	l.Inbox() <- Shutdown{Done: done}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("shutdown not acknowledged")
	}
	select {
	case <-l.Done():
	case <-time.After(time.Second):
		t.Fatalf("lobby goroutine did not exit")
	}

	if !c.Closed() {
		t.Fatalf("table sockets should be closed on shutdown")
	}
	time.Sleep(3 * testDelay)
	if n := countType(t, c, types.MsgNewRoundStarted); n != 0 {
		t.Fatalf("timer fired after shutdown")
	}
	if l.Send(context.Background(), GetState{Reply: make(chan View, 1)}) {
		t.Fatalf("send to a stopped lobby should fail")
	}
}

func TestLobby_Disconnected_KeepsSeat(t *testing.T) {
	l := newTestLobby(t, blackjackTable(), nil)
	c := registry.NewCapture("c1")
	w := registry.NewCapture("c2")

	l.Inbox() <- Attach{Conn: c}
	l.Inbox() <- Attach{Conn: w}
	send(t, l, c, types.ClientMessage{Type: types.MsgJoinTable, PlayerID: "p1", PlayerName: "alice"})

	l.Inbox() <- Disconnected{Conn: c}
	v := recvView(t, l)
	if len(v.Table.Players) != 1 || v.Table.Players[0].IsConnected {
		t.Fatalf("player should keep the seat but be disconnected: %+v", v.Table.Players)
	}
	if v.NumConns != 1 {
		t.Fatalf("want 1 remaining conn, got %d", v.NumConns)
	}
	if n := countType(t, w, types.MsgPlayerLeft); n != 1 {
		t.Fatalf("want player_left broadcast, got %d", n)
	}
}
