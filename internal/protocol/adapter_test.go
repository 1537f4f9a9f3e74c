package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/skeesen8/blackjack/internal/engine"
	"github.com/skeesen8/blackjack/internal/registry"
	"github.com/skeesen8/blackjack/pkg/types"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T, draws ...engine.Card) (*Adapter, *registry.Registry, *engine.Table) {
	t.Helper()
	reg := registry.New(zap.NewNop())
	a := New(reg, zap.NewNop(), WithClock(func() time.Time { return fixedNow }))
	tbl := engine.NewTable("test", engine.DefaultRules(), engine.WithID("t1"))
	tbl.Deck = engine.StackedDeck(draws...)
	return a, reg, tbl
}

func decode(t *testing.T, raw [][]byte) []types.ServerMessage {
	t.Helper()
	out := make([]types.ServerMessage, 0, len(raw))
	for _, b := range raw {
		var m types.ServerMessage
		require.NoError(t, json.Unmarshal(b, &m))
		out = append(out, m)
	}
	return out
}

func msgTypes(msgs []types.ServerMessage) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Type)
	}
	return out
}

func intp(v int) *int { return &v }

func TestJoinRepliesAndBroadcasts(t *testing.T) {
	a, _, tbl := setup(t)
	alice := registry.NewCapture("c-alice")
	watcher := registry.NewCapture("c-watch")
	a.Attach(tbl, alice)
	a.Attach(tbl, watcher)

	eff := a.Handle(tbl, alice, types.ClientMessage{Type: types.MsgJoinTable, PlayerName: "alice"})
	assert.True(t, eff.Applied)

	got := decode(t, alice.Messages())
	assert.Equal(t, []string{types.MsgTableState, types.MsgJoinTableResponse, types.MsgPlayerJoined}, msgTypes(got))
	require.NotNil(t, got[1].Player)
	assert.Equal(t, 1, got[1].Player.SeatPosition)
	assert.Equal(t, 1000, got[1].Player.Chips)
	assert.Equal(t, fixedNow.Format(time.RFC3339Nano), got[2].Timestamp)

	seen := decode(t, watcher.Messages())
	assert.Equal(t, []string{types.MsgTableState, types.MsgPlayerJoined}, msgTypes(seen))
	require.NotNil(t, seen[1].TableState)
	assert.Len(t, seen[1].TableState.Players, 1)
}

func TestFailureGoesOnlyToRequester(t *testing.T) {
	a, _, tbl := setup(t)
	c := registry.NewCapture("c1")
	other := registry.NewCapture("c2")
	a.Attach(tbl, c)
	a.Attach(tbl, other)

	eff := a.Handle(tbl, c, types.ClientMessage{Type: types.MsgPlaceBet, PlayerID: "nobody", Amount: intp(50)})
	assert.False(t, eff.Applied)

	got := decode(t, c.Messages())
	require.Len(t, got, 2)
	assert.Equal(t, types.MsgError, got[1].Type)
	assert.Equal(t, "player not found", got[1].Message)
	assert.Equal(t, "not_found", got[1].Code)
	assert.NotEmpty(t, got[1].Timestamp)
	assert.Len(t, other.Messages(), 1, "no broadcast on failure")
}

func TestUnknownTypeAndBadAction(t *testing.T) {
	a, _, tbl := setup(t)
	c := registry.NewCapture("c1")

	a.Handle(tbl, c, types.ClientMessage{Type: "insure"})
	a.Handle(tbl, c, types.ClientMessage{Type: types.MsgPlayerAction, PlayerID: "p1", Action: "insure"})
	a.Handle(tbl, c, types.ClientMessage{Type: types.MsgPlaceBet, PlayerID: "p1"})

	got := decode(t, c.Messages())
	require.Len(t, got, 3)
	assert.Equal(t, "unknown message type: insure", got[0].Message)
	assert.Equal(t, "invalid action: insure", got[1].Message)
	assert.Equal(t, "player_id and amount are required", got[2].Message)
}

func TestHoleCardRedactedWhilePlaying(t *testing.T) {
	a, _, tbl := setup(t,
		engine.C(engine.RankTen, engine.SuitSpades), engine.C(engine.RankAce, engine.SuitClubs),
		engine.C(engine.RankSix, engine.SuitHearts), engine.C(engine.RankKing, engine.SuitDiamonds),
	)
	c := registry.NewCapture("c1")
	a.Attach(tbl, c)
	a.Handle(tbl, c, types.ClientMessage{Type: types.MsgJoinTable, PlayerID: "p1", PlayerName: "alice"})
	eff := a.Handle(tbl, c, types.ClientMessage{Type: types.MsgPlaceBet, PlayerID: "p1", Amount: intp(100)})
	require.False(t, eff.RoundFinished)

	msgs := decode(t, c.Messages())
	started := msgs[len(msgs)-1]
	require.Equal(t, types.MsgGameStarted, started.Type)

	dealer := started.TableState.Dealer
	require.Len(t, dealer.Hand.Cards, 2)
	assert.Equal(t, types.Card{Hidden: true}, dealer.Hand.Cards[1])
	assert.Equal(t, 11, dealer.Hand.Value, "only the face-up ace counts")
	assert.False(t, dealer.Hand.IsBlackjack)
	require.NotNil(t, dealer.Upcard)
	assert.Equal(t, "A", dealer.Upcard.Rank)

	// Standing reveals the hole card and settles.
	eff = a.Handle(tbl, c, types.ClientMessage{Type: types.MsgPlayerAction, PlayerID: "p1", Action: "stand"})
	assert.True(t, eff.RoundFinished)

	msgs = decode(t, c.Messages())
	finished := msgs[len(msgs)-1]
	require.Equal(t, types.MsgGameFinished, finished.Type)
	require.NotNil(t, finished.DealerHand)
	assert.Equal(t, "K", finished.DealerHand.Cards[1].Rank)
	assert.True(t, finished.DealerHand.IsBlackjack)
	require.Len(t, finished.Results, 1)
	assert.Equal(t, "lose", finished.Results[0].Hands[0].Result)
}

func TestBlackjackScenarioFinishesRound(t *testing.T) {
	a, _, tbl := setup(t,
		engine.C(engine.RankTen, engine.SuitDiamonds), engine.C(engine.RankNine, engine.SuitClubs),
		engine.C(engine.RankAce, engine.SuitSpades), engine.C(engine.RankSeven, engine.SuitHearts),
	)
	c := registry.NewCapture("c1")
	a.Attach(tbl, c)
	a.Handle(tbl, c, types.ClientMessage{Type: types.MsgJoinTable, PlayerID: "p1", PlayerName: "alice"})

	eff := a.Handle(tbl, c, types.ClientMessage{Type: types.MsgPlaceBet, PlayerID: "p1", Amount: intp(100)})
	assert.True(t, eff.RoundFinished)

	msgs := decode(t, c.Messages())
	assert.Equal(t, []string{
		types.MsgTableState, types.MsgJoinTableResponse, types.MsgPlayerJoined,
		types.MsgPlaceBetResponse, types.MsgBetPlaced, types.MsgGameStarted, types.MsgGameFinished,
	}, msgTypes(msgs))

	finished := msgs[len(msgs)-1]
	assert.Equal(t, 250, finished.Results[0].Winnings)
	assert.Equal(t, "blackjack", finished.Results[0].Hands[0].Result)
	assert.Equal(t, 1150, finished.TableState.Players[0].Chips)

	assert.True(t, a.AutoNewRound(tbl).Applied)
	assert.Equal(t, engine.PhaseWaiting, tbl.Phase)
	assert.False(t, a.AutoNewRound(tbl).Applied, "second fire is a no-op")
}

func TestDisconnectKeepsSeat(t *testing.T) {
	a, reg, tbl := setup(t)
	c := registry.NewCapture("c1")
	w := registry.NewCapture("c2")
	a.Attach(tbl, c)
	a.Attach(tbl, w)
	a.Handle(tbl, c, types.ClientMessage{Type: types.MsgJoinTable, PlayerID: "p1", PlayerName: "alice"})

	eff := a.Disconnect(tbl, c)
	assert.True(t, eff.Applied)

	p, _ := tbl.Player("p1")
	require.NotNil(t, p)
	assert.False(t, p.IsConnected)

	msgs := decode(t, w.Messages())
	last := msgs[len(msgs)-1]
	assert.Equal(t, types.MsgPlayerLeft, last.Type)
	assert.Equal(t, "p1", last.PlayerID)

	conns, _ := reg.Counts("t1")
	assert.Equal(t, 1, conns)
	assert.False(t, a.Disconnect(tbl, c).Applied, "already pruned")
}

func TestEvictedPlayerIsMarkedDisconnected(t *testing.T) {
	a, _, tbl := setup(t)
	c := registry.NewCapture("c1")
	w := registry.NewCapture("c2")
	a.Attach(tbl, c)
	a.Attach(tbl, w)
	a.Handle(tbl, c, types.ClientMessage{Type: types.MsgJoinTable, PlayerID: "p1", PlayerName: "alice"})

	c.Close()
	a.Handle(tbl, w, types.ClientMessage{Type: types.MsgJoinTable, PlayerID: "p2", PlayerName: "bob"})

	p, _ := tbl.Player("p1")
	assert.False(t, p.IsConnected)
	msgs := decode(t, w.Messages())
	assert.Equal(t, types.MsgPlayerLeft, msgs[len(msgs)-1].Type)
}

func TestLeaveEmptiesTable(t *testing.T) {
	a, _, tbl := setup(t)
	c := registry.NewCapture("c1")
	a.Attach(tbl, c)
	a.Handle(tbl, c, types.ClientMessage{Type: types.MsgJoinTable, PlayerID: "p1", PlayerName: "alice"})

	eff := a.Handle(tbl, c, types.ClientMessage{Type: types.MsgLeaveTable, PlayerID: "p1"})
	assert.True(t, eff.TableEmpty)
	assert.True(t, tbl.IsEmpty())
}

func TestChatMessages(t *testing.T) {
	a, reg, tbl := setup(t)
	c := registry.NewCapture("chat-1")
	reg.RegisterChat(tbl.ID, c)

	require.NoError(t, a.Chat(tbl.ID, types.ClientMessage{PlayerID: "p1", PlayerName: "alice", Message: " hi "}))
	assert.Error(t, a.Chat(tbl.ID, types.ClientMessage{PlayerID: "p1", Message: "  "}))

	msgs := decode(t, c.Messages())
	require.Len(t, msgs, 1)
	assert.Equal(t, types.MsgChatMessage, msgs[0].Type)
	assert.Equal(t, "hi", msgs[0].Message)
	assert.Equal(t, fixedNow.Format(time.RFC3339Nano), msgs[0].Timestamp)
}
