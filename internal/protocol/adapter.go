package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/skeesen8/blackjack/internal/engine"
	"github.com/skeesen8/blackjack/internal/registry"
	"github.com/skeesen8/blackjack/pkg/types"
)

const maxChatRunes = 2000

// Effect tells the owning lobby what a handled message did to the table.
type Effect struct {
	Applied       bool // the table changed
	RoundFinished bool // a round was settled and the table is FINISHED
	TableEmpty    bool // the last player left
}

// Adapter turns client envelopes into engine commands and fans the results
// out through the registry. It holds no table state; the caller serializes
// every call for a given table.
type Adapter struct {
	reg *registry.Registry
	log *zap.Logger
	now func() time.Time
}

type Option func(*Adapter)

func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

func New(reg *registry.Registry, log *zap.Logger, opts ...Option) *Adapter {
	if log == nil {
		log = zap.NewNop()
	}
	a := &Adapter{reg: reg, log: log, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handle dispatches one inbound envelope from conn. On success the requester
// gets a private acknowledgement and the table gets a broadcast; on failure
// only the requester hears about it.
func (a *Adapter) Handle(t *engine.Table, from registry.Conn, msg types.ClientMessage) Effect {
	switch msg.Type {
	case types.MsgJoinTable:
		return a.join(t, from, msg)
	case types.MsgLeaveTable:
		return a.leave(t, from, msg)
	case types.MsgPlaceBet:
		return a.placeBet(t, from, msg)
	case types.MsgStartGame:
		return a.startGame(t, from)
	case types.MsgPlayerAction:
		return a.playerAction(t, from, msg)
	case types.MsgGetTableState:
		a.reply(from, types.ServerMessage{Type: types.MsgTableState, TableState: a.state(t)})
		return Effect{}
	case types.MsgResetTable:
		return a.resetTable(t, from)
	case types.MsgNewRound:
		return a.newRound(t, from)
	case types.MsgChatMessage:
		out, err := a.chatMessage(msg)
		if err != nil {
			a.fail(from, err)
			return Effect{}
		}
		a.broadcastRaw(t, out)
		return Effect{}
	default:
		a.fail(from, fmt.Errorf("unknown message type: %s", msg.Type))
		return Effect{}
	}
}

// Attach registers a table socket and sends it the current view.
func (a *Adapter) Attach(t *engine.Table, c registry.Conn) {
	a.reg.Register(t.ID, c)
	a.reply(c, types.ServerMessage{Type: types.MsgTableState, TableState: a.state(t)})
}

// Disconnect prunes a closed socket. If it spoke for a player, that player
// keeps the seat but is marked disconnected and the table is told.
func (a *Adapter) Disconnect(t *engine.Table, c registry.Conn) Effect {
	playerID := a.reg.Deregister(t.ID, c)
	if playerID == "" {
		return Effect{}
	}
	return Effect{Applied: a.markDisconnected(t, playerID)}
}

// AutoNewRound moves a finished table back to betting. It is a no-op unless
// the table is FINISHED and still has players.
func (a *Adapter) AutoNewRound(t *engine.Table) Effect {
	if t.Phase != engine.PhaseFinished || t.IsEmpty() {
		return Effect{}
	}
	if _, err := engine.Apply(t, engine.Command{Type: engine.CmdNewRound}); err != nil {
		a.log.Warn("auto new round", zap.String("table_id", t.ID), zap.Error(err))
		return Effect{}
	}
	a.broadcast(t, types.ServerMessage{
		Type:       types.MsgNewRoundStarted,
		Message:    "New round started",
		TableState: a.state(t),
	})
	return Effect{Applied: true}
}

// Chat relays a message from the side chat socket to the table's chat
// channel.
func (a *Adapter) Chat(tableID string, msg types.ClientMessage) error {
	out, err := a.chatMessage(msg)
	if err != nil {
		return err
	}
	a.reg.BroadcastChat(tableID, out)
	return nil
}

// Reject sends err to c as a private error envelope. The transport uses it
// for frames that never reach a table.
func (a *Adapter) Reject(c registry.Conn, err error) {
	a.fail(c, err)
}

func (a *Adapter) join(t *engine.Table, from registry.Conn, msg types.ClientMessage) Effect {
	events, err := engine.Apply(t, engine.Command{
		Type:       engine.CmdJoinTable,
		PlayerID:   msg.PlayerID,
		PlayerName: msg.PlayerName,
	})
	if err != nil {
		a.fail(from, err)
		return Effect{}
	}

	ev := events[0]
	p, _ := t.Player(ev.PlayerID)
	if a.reg.Registered(t.ID, from) {
		a.reg.BindPlayer(t.ID, p.ID, from)
	}

	text := "Joined table successfully"
	if ev.Type == engine.EvtPlayerRejoined {
		text = "Rejoined table"
	}
	player := RenderPlayer(p)
	a.reply(from, types.ServerMessage{
		Type:    types.MsgJoinTableResponse,
		Success: true,
		Player:  &player,
		Message: text,
	})
	a.broadcast(t, types.ServerMessage{
		Type:       types.MsgPlayerJoined,
		Player:     &player,
		TableState: a.state(t),
	})
	return Effect{Applied: true}
}

func (a *Adapter) leave(t *engine.Table, from registry.Conn, msg types.ClientMessage) Effect {
	if msg.PlayerID == "" {
		a.fail(from, errors.New("player_id is required"))
		return Effect{}
	}
	events, err := engine.Apply(t, engine.Command{Type: engine.CmdLeaveTable, PlayerID: msg.PlayerID})
	if err != nil {
		a.fail(from, err)
		return Effect{}
	}
	a.reg.UnbindPlayer(t.ID, msg.PlayerID)

	a.reply(from, types.ServerMessage{
		Type:    types.MsgLeaveTableResponse,
		Success: true,
		Message: "Left table successfully",
	})
	a.broadcast(t, types.ServerMessage{
		Type:       types.MsgPlayerLeft,
		PlayerID:   msg.PlayerID,
		TableState: a.state(t),
	})

	eff := Effect{Applied: true, TableEmpty: t.IsEmpty()}
	a.afterRound(t, events, &eff)
	return eff
}

func (a *Adapter) placeBet(t *engine.Table, from registry.Conn, msg types.ClientMessage) Effect {
	if msg.PlayerID == "" || msg.Amount == nil {
		a.fail(from, errors.New("player_id and amount are required"))
		return Effect{}
	}
	amount := *msg.Amount
	events, err := engine.Apply(t, engine.Command{Type: engine.CmdPlaceBet, PlayerID: msg.PlayerID, Amount: amount})
	if err != nil {
		a.fail(from, err)
		return Effect{}
	}

	a.reply(from, types.ServerMessage{
		Type:    types.MsgPlaceBetResponse,
		Success: true,
		Message: "Bet placed successfully",
		Amount:  amount,
	})
	a.broadcast(t, types.ServerMessage{
		Type:       types.MsgBetPlaced,
		PlayerID:   msg.PlayerID,
		Amount:     amount,
		TableState: a.state(t),
	})

	eff := Effect{Applied: true}
	a.afterRound(t, events, &eff)
	return eff
}

func (a *Adapter) startGame(t *engine.Table, from registry.Conn) Effect {
	events, err := engine.Apply(t, engine.Command{Type: engine.CmdStartGame})
	if err != nil {
		a.fail(from, err)
		return Effect{}
	}
	eff := Effect{Applied: true}
	a.afterRound(t, events, &eff)
	return eff
}

func (a *Adapter) playerAction(t *engine.Table, from registry.Conn, msg types.ClientMessage) Effect {
	if msg.PlayerID == "" || msg.Action == "" {
		a.fail(from, errors.New("player_id and action are required"))
		return Effect{}
	}
	action, err := engine.ParseAction(msg.Action)
	if err != nil {
		a.fail(from, err)
		return Effect{}
	}

	idx := engine.CurrentHand
	if msg.HandIndex != nil {
		idx = *msg.HandIndex
	}
	if p, _ := t.Player(msg.PlayerID); p != nil && idx == engine.CurrentHand {
		idx = p.CurrentHandIndex
	}

	events, err := engine.Apply(t, engine.Command{
		Type:      engine.CmdPlayerAction,
		PlayerID:  msg.PlayerID,
		Action:    action,
		HandIndex: idx,
	})
	if err != nil {
		a.fail(from, err)
		return Effect{}
	}

	result := actionResult(t, msg.PlayerID, idx, events)
	a.reply(from, types.ServerMessage{
		Type:    types.MsgPlayerActionResponse,
		Success: true,
		Action:  action.String(),
		Result:  result,
		Message: fmt.Sprintf("Action %s applied", action),
	})
	a.broadcast(t, types.ServerMessage{
		Type:       types.MsgPlayerActionBroadcast,
		PlayerID:   msg.PlayerID,
		Action:     action.String(),
		HandIndex:  &idx,
		Result:     result,
		TableState: a.state(t),
	})

	eff := Effect{Applied: true}
	a.afterRound(t, events, &eff)
	return eff
}

func actionResult(t *engine.Table, playerID string, idx int, events []engine.Event) *types.ActionResult {
	p, _ := t.Player(playerID)
	if p == nil || idx < 0 || idx >= len(p.Hands) {
		return nil
	}
	res := &types.ActionResult{HandIndex: idx, Hand: RenderHand(p.Hands[idx])}
	for _, ev := range events {
		if ev.Type == engine.EvtSurrendered {
			res.Refund = ev.Amount
		}
	}
	return res
}

func (a *Adapter) resetTable(t *engine.Table, from registry.Conn) Effect {
	if _, err := engine.Apply(t, engine.Command{Type: engine.CmdResetTable}); err != nil {
		a.fail(from, err)
		return Effect{}
	}
	a.broadcast(t, types.ServerMessage{
		Type:       types.MsgTableReset,
		Message:    "Table has been reset",
		TableState: a.state(t),
	})
	return Effect{Applied: true}
}

func (a *Adapter) newRound(t *engine.Table, from registry.Conn) Effect {
	if _, err := engine.Apply(t, engine.Command{Type: engine.CmdNewRound}); err != nil {
		a.fail(from, err)
		return Effect{}
	}
	a.broadcast(t, types.ServerMessage{
		Type:       types.MsgNewRoundStarted,
		Message:    "New round started",
		TableState: a.state(t),
	})
	return Effect{Applied: true}
}

// afterRound announces a deal or a settlement that happened as a side effect
// of the command just applied.
func (a *Adapter) afterRound(t *engine.Table, events []engine.Event, eff *Effect) {
	if engine.ContainsEvent(events, engine.EvtRoundStarted) {
		a.broadcast(t, types.ServerMessage{
			Type:       types.MsgGameStarted,
			Message:    "Game started",
			TableState: a.state(t),
		})
	}
	if engine.ContainsEvent(events, engine.EvtRoundSettled) {
		dealer := RenderHand(&t.Dealer.Hand)
		a.broadcast(t, types.ServerMessage{
			Type:       types.MsgGameFinished,
			Results:    RenderResults(t.LastResults),
			DealerHand: &dealer,
			TableState: a.state(t),
		})
		eff.RoundFinished = true
	}
}

func (a *Adapter) markDisconnected(t *engine.Table, playerID string) bool {
	if _, err := engine.Apply(t, engine.Command{Type: engine.CmdDisconnect, PlayerID: playerID}); err != nil {
		return false
	}
	a.broadcast(t, types.ServerMessage{
		Type:       types.MsgPlayerLeft,
		PlayerID:   playerID,
		Message:    "A player has left the table",
		TableState: a.state(t),
	})
	return true
}

func (a *Adapter) chatMessage(msg types.ClientMessage) ([]byte, error) {
	body := strings.TrimSpace(msg.Message)
	if body == "" {
		return nil, errors.New("message is required")
	}
	if utf8.RuneCountInString(body) > maxChatRunes {
		return nil, fmt.Errorf("message exceeds %d characters", maxChatRunes)
	}
	ts := msg.Timestamp
	if ts == "" {
		ts = a.timestamp()
	}
	return a.encode(types.ServerMessage{
		Type:       types.MsgChatMessage,
		PlayerID:   msg.PlayerID,
		PlayerName: msg.PlayerName,
		Message:    body,
		Timestamp:  ts,
	})
}

func (a *Adapter) state(t *engine.Table) *types.TableState {
	ts := Render(t)
	return &ts
}

func (a *Adapter) reply(to registry.Conn, m types.ServerMessage) {
	if to == nil {
		return
	}
	m.Timestamp = a.timestamp()
	b, err := a.encode(m)
	if err != nil {
		return
	}
	if err := to.Send(b); err != nil {
		a.log.Debug("reply dropped", zap.String("conn_id", to.ID()), zap.String("type", m.Type), zap.Error(err))
	}
}

func (a *Adapter) fail(to registry.Conn, err error) {
	m := types.ServerMessage{Type: types.MsgError, Message: err.Error()}
	var ee *engine.Error
	if errors.As(err, &ee) {
		m.Message = ee.Message
		m.Code = string(ee.Code)
	}
	a.reply(to, m)
}

// broadcast stamps and sends m to the whole table. Players whose sockets
// were evicted along the way are marked disconnected, which is itself
// broadcast.
func (a *Adapter) broadcast(t *engine.Table, m types.ServerMessage) {
	m.Timestamp = a.timestamp()
	b, err := a.encode(m)
	if err != nil {
		return
	}
	a.broadcastRaw(t, b)
}

func (a *Adapter) broadcastRaw(t *engine.Table, b []byte) {
	for _, playerID := range a.reg.Broadcast(t.ID, b) {
		a.markDisconnected(t, playerID)
	}
}

func (a *Adapter) encode(m types.ServerMessage) ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		a.log.Error("encode server message", zap.String("type", m.Type), zap.Error(err))
		return nil, err
	}
	return b, nil
}

func (a *Adapter) timestamp() string {
	return a.now().UTC().Format(time.RFC3339Nano)
}
