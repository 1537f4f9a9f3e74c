package protocol

import (
	"github.com/skeesen8/blackjack/internal/engine"
	"github.com/skeesen8/blackjack/pkg/types"
)

// Render serializes the table for clients. While the hole card is face down
// it is replaced by a placeholder and the dealer's derived values are
// computed from the face-up cards only.
func Render(t *engine.Table) types.TableState {
	ts := types.TableState{
		ID:                 t.ID,
		Name:               t.Name,
		Phase:              string(t.Phase),
		MinBet:             t.Rules.MinBet,
		MaxBet:             t.Rules.MaxBet,
		MaxPlayers:         t.Rules.MaxPlayers,
		CurrentPlayerIndex: t.CurrentPlayerIndex,
		Round:              t.Round,
		Players:            make([]types.Player, 0, len(t.Players)),
		Dealer:             RenderDealer(&t.Dealer),
		DeckCount:          t.Deck.Len(),
	}
	for _, p := range t.Players {
		ts.Players = append(ts.Players, RenderPlayer(p))
	}
	return ts
}

func RenderPlayer(p *engine.Player) types.Player {
	out := types.Player{
		ID:               p.ID,
		Name:             p.Name,
		Chips:            p.Chips,
		SeatPosition:     p.SeatPosition,
		IsActive:         p.IsActive,
		IsConnected:      p.IsConnected,
		CurrentHandIndex: p.CurrentHandIndex,
		Hands:            make([]types.Hand, 0, len(p.Hands)),
		TotalBet:         p.TotalBet(),
	}
	for _, h := range p.Hands {
		out.Hands = append(out.Hands, RenderHand(h))
	}
	return out
}

func RenderDealer(d *engine.Dealer) types.Dealer {
	visible := engine.Dealer{Hand: faceUp(&d.Hand)}
	out := types.Dealer{
		Hand:      RenderHand(&d.Hand),
		ShouldHit: visible.ShouldHit(),
	}
	if up, ok := d.Upcard(); ok {
		c := renderCard(up)
		out.Upcard = &c
	}
	return out
}

// RenderHand redacts hidden cards and derives every value from what is
// visible.
func RenderHand(h *engine.Hand) types.Hand {
	visible := faceUp(h)
	out := types.Hand{
		Cards:         make([]types.Card, 0, len(h.Cards)),
		Value:         visible.Value(),
		Bet:           h.Bet,
		IsSplit:       h.IsSplit,
		IsDoubled:     h.IsDoubled,
		IsSurrendered: h.IsSurrendered,
		IsFinished:    h.IsFinished,
		IsBlackjack:   visible.IsBlackjack(),
		IsBust:        visible.IsBust(),
		CanSplit:      visible.CanSplit(),
		CanDouble:     visible.CanDouble(),
	}
	for _, c := range h.Cards {
		out.Cards = append(out.Cards, renderCard(c))
	}
	return out
}

func renderCard(c engine.Card) types.Card {
	if c.Hidden {
		return types.Card{Hidden: true}
	}
	return types.Card{Suit: string(c.Suit), Rank: string(c.Rank), Value: c.Value()}
}

func faceUp(h *engine.Hand) engine.Hand {
	if !hasHidden(h) {
		return *h
	}
	v := *h
	v.Cards = make([]engine.Card, 0, len(h.Cards))
	for _, c := range h.Cards {
		if !c.Hidden {
			v.Cards = append(v.Cards, c)
		}
	}
	return v
}

func hasHidden(h *engine.Hand) bool {
	for _, c := range h.Cards {
		if c.Hidden {
			return true
		}
	}
	return false
}

func RenderResults(results []engine.PlayerResult) []types.PlayerResult {
	out := make([]types.PlayerResult, 0, len(results))
	for _, r := range results {
		pr := types.PlayerResult{
			PlayerID: r.PlayerID,
			Hands:    make([]types.HandResult, 0, len(r.Hands)),
			Winnings: r.Winnings,
			TotalBet: r.TotalBet,
		}
		for _, h := range r.Hands {
			hr := types.HandResult{
				Cards:    make([]types.Card, 0, len(h.Cards)),
				Value:    h.Value,
				Bet:      h.Bet,
				Winnings: h.Winnings,
				Result:   string(h.Result),
			}
			for _, c := range h.Cards {
				hr.Cards = append(hr.Cards, renderCard(c))
			}
			pr.Hands = append(pr.Hands, hr)
		}
		out = append(out, pr)
	}
	return out
}

// Summarize is the directory row for a table.
func Summarize(t *engine.Table) types.TableSummary {
	return types.TableSummary{
		ID:          t.ID,
		Name:        t.Name,
		State:       string(t.Phase),
		PlayerCount: len(t.Players),
		MaxPlayers:  t.Rules.MaxPlayers,
		MinBet:      t.Rules.MinBet,
		MaxBet:      t.Rules.MaxBet,
		IsFull:      t.IsFull(),
	}
}
