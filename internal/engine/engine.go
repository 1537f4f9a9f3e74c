package engine

import (
	"slices"
	"strings"

	"github.com/google/uuid"
)

type CommandType string

const (
	CmdJoinTable    CommandType = "JoinTable"
	CmdLeaveTable   CommandType = "LeaveTable"
	CmdDisconnect   CommandType = "Disconnect"
	CmdPlaceBet     CommandType = "PlaceBet"
	CmdStartGame    CommandType = "StartGame"
	CmdPlayerAction CommandType = "PlayerAction"
	CmdNewRound     CommandType = "NewRound"
	CmdResetTable   CommandType = "ResetTable"
)

// CurrentHand targets whichever hand the player is currently playing.
const CurrentHand = -1

/*
	CmdJoinTable    -> EvtPlayerJoined | EvtPlayerRejoined
	CmdLeaveTable   -> EvtPlayerLeft [-> EvtTurnAdvanced | round finish]
	CmdPlaceBet     -> EvtBetPlaced [-> EvtRoundStarted -> EvtCardDealt... -> EvtTurnAdvanced]
	CmdStartGame    -> EvtRoundStarted -> EvtCardDealt... -> EvtTurnAdvanced | round finish
	CmdPlayerAction -> EvtCardDealt/EvtStood/EvtDoubled/EvtSplit/EvtSurrendered [-> EvtBusted]
	                   [-> EvtTurnAdvanced | EvtHoleCardRevealed -> EvtDealerDrew... -> EvtRoundSettled]
	CmdNewRound     -> EvtNewRound
	CmdResetTable   -> EvtTableReset
*/

type Command struct {
	Type       CommandType
	PlayerID   string
	PlayerName string
	Amount     int
	Action     Action
	HandIndex  int
}

type EventType string

const (
	EvtPlayerJoined       EventType = "PlayerJoined"
	EvtPlayerRejoined     EventType = "PlayerRejoined"
	EvtPlayerLeft         EventType = "PlayerLeft"
	EvtPlayerDisconnected EventType = "PlayerDisconnected"
	EvtBetPlaced          EventType = "BetPlaced"
	EvtRoundStarted       EventType = "RoundStarted"
	EvtCardDealt          EventType = "CardDealt"
	EvtStood              EventType = "Stood"
	EvtBusted             EventType = "Busted"
	EvtDoubled            EventType = "Doubled"
	EvtSplit              EventType = "Split"
	EvtSurrendered        EventType = "Surrendered"
	EvtTurnAdvanced       EventType = "TurnAdvanced"
	EvtHoleCardRevealed   EventType = "HoleCardRevealed"
	EvtDealerDrew         EventType = "DealerDrew"
	EvtRoundSettled       EventType = "RoundSettled"
	EvtNewRound           EventType = "NewRound"
	EvtTableReset         EventType = "TableReset"
)

// Event describes one state change. Which fields are set depends on Type:
// Card for dealt and drawn cards, Value for the resulting hand value, Amount
// for bets, refunds and seat numbers.
type Event struct {
	Type      EventType
	PlayerID  string
	HandIndex int
	Card      Card
	Value     int
	Amount    int
}

// Apply runs one command against the table. On error the table is unchanged.
func Apply(t *Table, cmd Command) ([]Event, error) {
	var (
		events []Event
		err    error
	)

	switch cmd.Type {
	case CmdJoinTable:
		events, err = join(t, cmd)
	case CmdLeaveTable:
		events, err = leave(t, cmd)
	case CmdDisconnect:
		events, err = disconnect(t, cmd)
	case CmdPlaceBet:
		events, err = placeBet(t, cmd)
	case CmdStartGame:
		events, err = startGame(t)
	case CmdPlayerAction:
		events, err = act(t, cmd)
	case CmdNewRound:
		events, err = newRound(t)
	case CmdResetTable:
		events, err = reset(t)
	default:
		return nil, newErr(CodeInvalidAction, "unsupported command %q", cmd.Type)
	}

	if err != nil {
		return nil, err
	}
	t.touch()
	return events, nil
}

func join(t *Table, cmd Command) ([]Event, error) {
	name := strings.TrimSpace(cmd.PlayerName)

	if cmd.PlayerID != "" {
		if p, _ := t.Player(cmd.PlayerID); p != nil {
			p.IsConnected = true
			return []Event{{Type: EvtPlayerRejoined, PlayerID: p.ID, Amount: p.SeatPosition}}, nil
		}
	}

	if name == "" {
		return nil, newErr(CodeInvalidAction, "player name is required")
	}
	if t.IsFull() {
		return nil, ErrTableFull
	}

	id := cmd.PlayerID
	if id == "" {
		id = uuid.NewString()
	}
	seat := lowestFreeSeat(t)
	t.Players = append(t.Players, &Player{
		ID:           id,
		Name:         name,
		Chips:        t.Rules.StartingChips,
		SeatPosition: seat,
		IsActive:     true,
		IsConnected:  true,
	})
	return []Event{{Type: EvtPlayerJoined, PlayerID: id, Amount: seat}}, nil
}

func lowestFreeSeat(t *Table) int {
	taken := make(map[int]bool, len(t.Players))
	for _, p := range t.Players {
		taken[p.SeatPosition] = true
	}
	for seat := 1; seat <= t.Rules.MaxPlayers; seat++ {
		if !taken[seat] {
			return seat
		}
	}
	// unreachable: callers check IsFull first
	return len(t.Players) + 1
}

func leave(t *Table, cmd Command) ([]Event, error) {
	p, idx := t.Player(cmd.PlayerID)
	if p == nil {
		return nil, newErr(CodeNotFound, "player not found")
	}

	activeIdx := slices.Index(t.ActivePlayers(), p)
	t.Players = slices.Delete(t.Players, idx, idx+1)
	events := []Event{{Type: EvtPlayerLeft, PlayerID: p.ID, Amount: p.SeatPosition}}

	if t.IsEmpty() {
		t.Phase = PhaseWaiting
		t.CurrentPlayerIndex = -1
		t.Dealer = Dealer{}
		t.LastResults = nil
		return events, nil
	}

	switch t.Phase {
	case PhasePlaying:
		if activeIdx < 0 {
			break
		}
		if activeIdx < t.CurrentPlayerIndex {
			t.CurrentPlayerIndex--
		} else if activeIdx == t.CurrentPlayerIndex {
			// The next player slid into the leaver's index.
			seekTurn(t, activeIdx, len(t.ActivePlayers()), &events)
		}
	case PhaseWaiting:
		if allActiveBet(t) {
			startRound(t, &events)
		}
	}
	return events, nil
}

func disconnect(t *Table, cmd Command) ([]Event, error) {
	p, _ := t.Player(cmd.PlayerID)
	if p == nil {
		return nil, newErr(CodeNotFound, "player not found")
	}
	p.IsConnected = false
	return []Event{{Type: EvtPlayerDisconnected, PlayerID: p.ID}}, nil
}

func placeBet(t *Table, cmd Command) ([]Event, error) {
	if t.Phase != PhaseWaiting {
		return nil, newErr(CodeInvalidState, "bets can only be placed between rounds")
	}
	p, _ := t.Player(cmd.PlayerID)
	if p == nil {
		return nil, newErr(CodeNotFound, "player not found")
	}
	if cmd.Amount < t.Rules.MinBet || cmd.Amount > t.Rules.MaxBet {
		return nil, newErr(CodeInvalidAction, "bet must be between %d and %d", t.Rules.MinBet, t.Rules.MaxBet)
	}

	prior := 0
	if p.hasBet() {
		prior = p.Hands[0].Bet
	}
	if cmd.Amount > p.Chips+prior {
		return nil, newErr(CodeInsufficientFunds, "insufficient chips")
	}

	p.Chips += prior - cmd.Amount
	p.Hands = []*Hand{{Bet: cmd.Amount}}
	p.CurrentHandIndex = 0

	events := []Event{{Type: EvtBetPlaced, PlayerID: p.ID, Amount: cmd.Amount}}
	if allActiveBet(t) {
		startRound(t, &events)
	}
	return events, nil
}

func allActiveBet(t *Table) bool {
	active := t.ActivePlayers()
	if len(active) == 0 {
		return false
	}
	for _, p := range active {
		if !p.hasBet() {
			return false
		}
	}
	return true
}

func startGame(t *Table) ([]Event, error) {
	if t.Phase != PhaseWaiting {
		return nil, newErr(CodeInvalidState, "a round is already in progress")
	}
	if len(t.ActivePlayers()) == 0 {
		return nil, newErr(CodeInvalidState, "no active players")
	}
	if !slices.ContainsFunc(t.ActivePlayers(), (*Player).hasBet) {
		return nil, newErr(CodeInvalidState, "no player has placed a bet")
	}

	var events []Event
	startRound(t, &events)
	return events, nil
}

func newRound(t *Table) ([]Event, error) {
	if t.Phase != PhaseFinished {
		return nil, newErr(CodeInvalidState, "the current round is not finished")
	}
	clearRound(t)
	return []Event{{Type: EvtNewRound, Amount: t.Round}}, nil
}

// reset is the administrative escape hatch: it works from any phase and
// returns the stakes of an unsettled round to their owners.
func reset(t *Table) ([]Event, error) {
	if t.Phase != PhaseFinished {
		for _, p := range t.Players {
			for _, h := range p.Hands {
				if h.IsSurrendered {
					p.Chips += h.Bet - h.Bet/2
				} else {
					p.Chips += h.Bet
				}
			}
		}
	}
	clearRound(t)
	return []Event{{Type: EvtTableReset}}, nil
}

func clearRound(t *Table) {
	for _, p := range t.Players {
		p.Hands = nil
		p.CurrentHandIndex = 0
	}
	t.Dealer = Dealer{}
	t.LastResults = nil
	t.reshoeIfLow()
	t.Phase = PhaseWaiting
	t.CurrentPlayerIndex = -1
}
