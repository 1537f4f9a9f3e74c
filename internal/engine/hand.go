package engine

const (
	blackjackValue = 21
	dealerStandsOn = 17
	acePromotion   = 10
)

type Hand struct {
	Cards         []Card
	Bet           int
	IsSplit       bool
	IsDoubled     bool
	IsSurrendered bool
	IsFinished    bool
}

// Value promotes aces from 1 to 11 one at a time while the total stays at or
// under 21, which gives the best total regardless of card order.
func (h *Hand) Value() int {
	total, _ := h.score()
	return total
}

// IsSoft reports whether at least one ace is currently counted as 11.
func (h *Hand) IsSoft() bool {
	_, soft := h.score()
	return soft
}

func (h *Hand) score() (int, bool) {
	total, aces := 0, 0
	for _, c := range h.Cards {
		total += c.Value()
		if c.Rank == RankAce {
			aces++
		}
	}
	soft := false
	for aces > 0 && total+acePromotion <= blackjackValue {
		total += acePromotion
		aces--
		soft = true
	}
	return total, soft
}

func (h *Hand) IsBlackjack() bool {
	return len(h.Cards) == 2 && h.Value() == blackjackValue
}

func (h *Hand) IsBust() bool {
	return h.Value() > blackjackValue
}

func (h *Hand) CanSplit() bool {
	return len(h.Cards) == 2 && h.Cards[0].Rank == h.Cards[1].Rank && !h.IsSplit
}

func (h *Hand) CanDouble() bool {
	return len(h.Cards) == 2 && !h.IsDoubled
}

type Dealer struct {
	Hand Hand
}

// Upcard returns the first dealt card, or false before the deal.
func (d *Dealer) Upcard() (Card, bool) {
	if len(d.Hand.Cards) == 0 {
		return Card{}, false
	}
	return d.Hand.Cards[0], true
}

// ShouldHit applies the house rule: draw below 17 and on soft 17.
func (d *Dealer) ShouldHit() bool {
	v := d.Hand.Value()
	if v < dealerStandsOn {
		return true
	}
	return v == dealerStandsOn && d.Hand.IsSoft()
}
