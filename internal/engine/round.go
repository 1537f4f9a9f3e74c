package engine

import "slices"

func startRound(t *Table, events *[]Event) {
	t.reshoeIfLow()
	t.Dealer = Dealer{}
	t.LastResults = nil
	t.Round++

	var bettors []*Player
	for _, p := range t.ActivePlayers() {
		if p.hasBet() {
			p.Hands = p.Hands[:1]
			p.CurrentHandIndex = 0
			bettors = append(bettors, p)
		} else {
			p.Hands = nil
		}
	}

	*events = append(*events, Event{Type: EvtRoundStarted, Amount: t.Round})

	// Players, dealer up card, players, dealer hole card.
	for _, p := range bettors {
		dealTo(t, p, 0, events)
	}
	t.Dealer.Hand.Cards = append(t.Dealer.Hand.Cards, t.draw())
	for _, p := range bettors {
		dealTo(t, p, 0, events)
	}
	hole := t.draw()
	hole.Hidden = true
	t.Dealer.Hand.Cards = append(t.Dealer.Hand.Cards, hole)

	// Naturals sit out the acting phase and are paid at settlement.
	for _, p := range bettors {
		if h := p.Hands[0]; h.IsBlackjack() {
			h.IsFinished = true
		}
	}

	t.Phase = PhasePlaying
	seekTurn(t, 0, len(t.ActivePlayers()), events)
}

func dealTo(t *Table, p *Player, handIdx int, events *[]Event) Card {
	h := p.Hands[handIdx]
	c := t.draw()
	h.Cards = append(h.Cards, c)
	*events = append(*events, Event{Type: EvtCardDealt, PlayerID: p.ID, HandIndex: handIdx, Card: c, Value: h.Value()})
	return c
}

func act(t *Table, cmd Command) ([]Event, error) {
	if t.Phase != PhasePlaying {
		return nil, newErr(CodeInvalidState, "no round in progress")
	}
	p, _ := t.Player(cmd.PlayerID)
	if p == nil {
		return nil, newErr(CodeNotFound, "player not found")
	}
	if t.CurrentPlayer() != p {
		return nil, newErr(CodeInvalidTurn, "not your turn")
	}

	idx := cmd.HandIndex
	if idx == CurrentHand {
		idx = p.CurrentHandIndex
	}
	if idx < 0 || idx >= len(p.Hands) {
		return nil, newErr(CodeInvalidAction, "invalid hand index")
	}
	if idx != p.CurrentHandIndex {
		return nil, newErr(CodeInvalidAction, "hand %d is not the active hand", idx)
	}
	h := p.Hands[idx]
	if h.IsFinished {
		return nil, newErr(CodeInvalidAction, "hand is already finished")
	}

	var events []Event
	switch cmd.Action {
	case ActionHit:
		dealTo(t, p, idx, &events)
		if h.IsBust() {
			h.IsFinished = true
			events = append(events, Event{Type: EvtBusted, PlayerID: p.ID, HandIndex: idx, Value: h.Value()})
			advanceTurn(t, &events)
		}

	case ActionStand:
		h.IsFinished = true
		events = append(events, Event{Type: EvtStood, PlayerID: p.ID, HandIndex: idx, Value: h.Value()})
		advanceTurn(t, &events)

	case ActionDouble:
		if !h.CanDouble() {
			return nil, newErr(CodeInvalidAction, "cannot double down")
		}
		if p.Chips < h.Bet {
			return nil, newErr(CodeInsufficientFunds, "insufficient chips to double")
		}
		p.Chips -= h.Bet
		h.Bet *= 2
		h.IsDoubled = true
		events = append(events, Event{Type: EvtDoubled, PlayerID: p.ID, HandIndex: idx, Amount: h.Bet})
		dealTo(t, p, idx, &events)
		h.IsFinished = true
		if h.IsBust() {
			events = append(events, Event{Type: EvtBusted, PlayerID: p.ID, HandIndex: idx, Value: h.Value()})
		}
		advanceTurn(t, &events)

	case ActionSplit:
		if !h.CanSplit() {
			return nil, newErr(CodeInvalidAction, "cannot split")
		}
		if p.Chips < h.Bet {
			return nil, newErr(CodeInsufficientFunds, "insufficient chips to split")
		}
		p.Chips -= h.Bet
		second := &Hand{Cards: []Card{h.Cards[1]}, Bet: h.Bet, IsSplit: true}
		h.Cards = []Card{h.Cards[0]}
		h.IsSplit = true
		p.Hands = slices.Insert(p.Hands, idx+1, second)
		events = append(events, Event{Type: EvtSplit, PlayerID: p.ID, HandIndex: idx, Amount: second.Bet})
		dealTo(t, p, idx, &events)
		dealTo(t, p, idx+1, &events)

	case ActionSurrender:
		if len(h.Cards) != 2 {
			return nil, newErr(CodeInvalidAction, "can only surrender with the initial two cards")
		}
		h.IsSurrendered = true
		h.IsFinished = true
		refund := h.Bet / 2
		p.Chips += refund
		events = append(events, Event{Type: EvtSurrendered, PlayerID: p.ID, HandIndex: idx, Amount: refund})
		advanceTurn(t, &events)

	default:
		return nil, newErr(CodeInvalidAction, "invalid action")
	}
	return events, nil
}

// finishRound plays the dealer's hand and settles every bet.
func finishRound(t *Table, events *[]Event) {
	t.Phase = PhaseDealerTurn
	t.CurrentPlayerIndex = -1

	for i := range t.Dealer.Hand.Cards {
		if t.Dealer.Hand.Cards[i].Hidden {
			t.Dealer.Hand.Cards[i].Hidden = false
			*events = append(*events, Event{Type: EvtHoleCardRevealed, Card: t.Dealer.Hand.Cards[i], Value: t.Dealer.Hand.Value()})
		}
	}

	if hasLiveHand(t) {
		for t.Dealer.ShouldHit() {
			c := t.draw()
			t.Dealer.Hand.Cards = append(t.Dealer.Hand.Cards, c)
			*events = append(*events, Event{Type: EvtDealerDrew, Card: c, Value: t.Dealer.Hand.Value()})
		}
	}

	settle(t)
	*events = append(*events, Event{Type: EvtRoundSettled, Amount: t.Round, Value: t.Dealer.Hand.Value()})
}

// hasLiveHand reports whether any hand can still be beaten by the dealer.
func hasLiveHand(t *Table) bool {
	for _, p := range t.ActivePlayers() {
		for _, h := range p.Hands {
			if !h.IsBust() && !h.IsSurrendered {
				return true
			}
		}
	}
	return false
}

func settle(t *Table) {
	dealer := &t.Dealer.Hand
	dealerValue := dealer.Value()
	dealerBJ := dealer.IsBlackjack()
	dealerBust := dealer.IsBust()

	results := make([]PlayerResult, 0, len(t.Players))
	for _, p := range t.ActivePlayers() {
		if len(p.Hands) == 0 {
			continue
		}
		pr := PlayerResult{PlayerID: p.ID, TotalBet: p.TotalBet()}
		for _, h := range p.Hands {
			outcome, winnings := payout(h, dealerValue, dealerBJ, dealerBust)
			p.Chips += winnings
			pr.Winnings += winnings
			pr.Hands = append(pr.Hands, HandResult{
				Cards:    slices.Clone(h.Cards),
				Value:    h.Value(),
				Bet:      h.Bet,
				Winnings: winnings,
				Result:   outcome,
			})
		}
		results = append(results, pr)
	}

	t.LastResults = results
	t.Phase = PhaseFinished
}

// payout returns what goes back to the player for one hand. A surrendered
// hand was already refunded when it was surrendered.
func payout(h *Hand, dealerValue int, dealerBJ, dealerBust bool) (Outcome, int) {
	switch {
	case h.IsSurrendered:
		return OutcomeSurrendered, 0
	case h.IsBust():
		return OutcomeBust, 0
	case h.IsBlackjack() && !dealerBJ:
		return OutcomeBlackjack, h.Bet + h.Bet*3/2
	case h.IsBlackjack():
		return OutcomePush, h.Bet
	case dealerBust:
		return OutcomeWin, 2 * h.Bet
	case h.Value() > dealerValue:
		return OutcomeWin, 2 * h.Bet
	case h.Value() == dealerValue:
		return OutcomePush, h.Bet
	default:
		return OutcomeLose, 0
	}
}
