package engine

import (
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
)

type Phase string

const (
	PhaseWaiting    Phase = "waiting"
	PhasePlaying    Phase = "playing"
	PhaseDealerTurn Phase = "dealer_turn"
	PhaseFinished   Phase = "finished"
)

// ParsePhase accepts the wire name of a phase.
func ParsePhase(s string) (Phase, bool) {
	switch p := Phase(s); p {
	case PhaseWaiting, PhasePlaying, PhaseDealerTurn, PhaseFinished:
		return p, true
	}
	return "", false
}

type Rules struct {
	MinBet        int
	MaxBet        int
	MaxPlayers    int
	StartingChips int
	NumDecks      int
	ReshuffleAt   int
}

func DefaultRules() Rules {
	return Rules{
		MinBet:        10,
		MaxBet:        500,
		MaxPlayers:    6,
		StartingChips: 1000,
		NumDecks:      DefaultNumDecks,
		ReshuffleAt:   DefaultReshuffleAt,
	}
}

type Player struct {
	ID               string
	Name             string
	Chips            int
	Hands            []*Hand
	CurrentHandIndex int
	SeatPosition     int
	IsActive         bool
	IsConnected      bool
}

func (p *Player) CurrentHand() *Hand {
	if p.CurrentHandIndex >= 0 && p.CurrentHandIndex < len(p.Hands) {
		return p.Hands[p.CurrentHandIndex]
	}
	return nil
}

func (p *Player) TotalBet() int {
	total := 0
	for _, h := range p.Hands {
		total += h.Bet
	}
	return total
}

func (p *Player) hasBet() bool {
	return len(p.Hands) > 0 && p.Hands[0].Bet > 0
}

// firstUnfinished returns the index of the first unfinished hand at or after
// from, or -1.
func (p *Player) firstUnfinished(from int) int {
	for i := max(from, 0); i < len(p.Hands); i++ {
		if !p.Hands[i].IsFinished {
			return i
		}
	}
	return -1
}

type HandResult struct {
	Cards    []Card
	Value    int
	Bet      int
	Winnings int
	Result   Outcome
}

type PlayerResult struct {
	PlayerID string
	Hands    []HandResult
	Winnings int
	TotalBet int
}

type Outcome string

const (
	OutcomeSurrendered Outcome = "surrendered"
	OutcomeBust        Outcome = "bust"
	OutcomeBlackjack   Outcome = "blackjack"
	OutcomeWin         Outcome = "win"
	OutcomePush        Outcome = "push"
	OutcomeLose        Outcome = "lose"
)

// Table is the authoritative state of one blackjack table. It is not safe for
// concurrent use; the owning lobby serializes every call.
type Table struct {
	ID                 string
	Name               string
	Rules              Rules
	Players            []*Player
	Dealer             Dealer
	Deck               Deck
	Phase              Phase
	CurrentPlayerIndex int
	Round              int
	LastResults        []PlayerResult
	CreatedAt          time.Time
	UpdatedAt          time.Time

	rng *rand.Rand
	now func() time.Time
}

type Option func(*Table)

// WithRand makes shoe shuffles reproducible.
func WithRand(rng *rand.Rand) Option {
	return func(t *Table) { t.rng = rng }
}

func WithClock(now func() time.Time) Option {
	return func(t *Table) { t.now = now }
}

func WithID(id string) Option {
	return func(t *Table) { t.ID = id }
}

func NewTable(name string, rules Rules, opts ...Option) *Table {
	def := DefaultRules()
	if rules.MinBet <= 0 {
		rules.MinBet = def.MinBet
	}
	if rules.MaxBet < rules.MinBet {
		rules.MaxBet = max(def.MaxBet, rules.MinBet)
	}
	if rules.MaxPlayers <= 0 {
		rules.MaxPlayers = def.MaxPlayers
	}
	if rules.StartingChips <= 0 {
		rules.StartingChips = def.StartingChips
	}
	if rules.NumDecks <= 0 {
		rules.NumDecks = def.NumDecks
	}
	if rules.ReshuffleAt <= 0 {
		rules.ReshuffleAt = def.ReshuffleAt
	}

	t := &Table{
		ID:    uuid.NewString(),
		Name:  name,
		Rules: rules,
		Phase: PhaseWaiting,
		now:   time.Now,

		CurrentPlayerIndex: -1,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.Deck = NewShoe(rules.NumDecks, t.rng)
	t.CreatedAt = t.now().UTC()
	t.UpdatedAt = t.CreatedAt
	return t
}

// ActivePlayers is the turn order.
func (t *Table) ActivePlayers() []*Player {
	active := make([]*Player, 0, len(t.Players))
	for _, p := range t.Players {
		if p.IsActive {
			active = append(active, p)
		}
	}
	return active
}

// CurrentPlayer is the player expected to act, or nil outside PLAYING.
func (t *Table) CurrentPlayer() *Player {
	if t.Phase != PhasePlaying {
		return nil
	}
	active := t.ActivePlayers()
	if t.CurrentPlayerIndex >= 0 && t.CurrentPlayerIndex < len(active) {
		return active[t.CurrentPlayerIndex]
	}
	return nil
}

func (t *Table) Player(id string) (*Player, int) {
	for i, p := range t.Players {
		if p.ID == id {
			return p, i
		}
	}
	return nil, -1
}

func (t *Table) IsFull() bool {
	return len(t.Players) >= t.Rules.MaxPlayers
}

func (t *Table) IsEmpty() bool {
	return len(t.Players) == 0
}

// draw never underflows: an empty pile is replaced with a fresh shoe first.
func (t *Table) draw() Card {
	if t.Deck.Len() == 0 {
		t.Deck = NewShoe(t.Rules.NumDecks, t.rng)
	}
	return t.Deck.pop()
}

func (t *Table) reshoeIfLow() bool {
	if t.Deck.Len() < t.Rules.ReshuffleAt {
		t.Deck = NewShoe(t.Rules.NumDecks, t.rng)
		return true
	}
	return false
}

func (t *Table) touch() {
	t.UpdatedAt = t.now().UTC()
}
