package engine

// advanceTurn runs after the acting hand finished. A later unfinished hand of
// the same player (from a split) keeps the turn; otherwise the turn moves to
// the next active player holding an unfinished hand, wrapping around but never
// back to the current player. When nobody is left the dealer plays.
func advanceTurn(t *Table, events *[]Event) {
	active := t.ActivePlayers()
	cur := t.CurrentPlayerIndex
	if cur < 0 || cur >= len(active) {
		seekTurn(t, 0, len(active), events)
		return
	}

	p := active[cur]
	if next := p.firstUnfinished(p.CurrentHandIndex + 1); next >= 0 {
		p.CurrentHandIndex = next
		*events = append(*events, Event{Type: EvtTurnAdvanced, PlayerID: p.ID, HandIndex: next})
		return
	}
	seekTurn(t, cur+1, len(active)-1, events)
}

// seekTurn visits up to count active players starting at index start,
// pointing each at its first unfinished hand. The first one found becomes
// current. If none is found the round moves to the dealer.
func seekTurn(t *Table, start, count int, events *[]Event) {
	active := t.ActivePlayers()
	n := len(active)
	for k := 0; k < count && n > 0; k++ {
		i := (start + k) % n
		p := active[i]
		p.CurrentHandIndex = 0
		if h := p.firstUnfinished(0); h >= 0 {
			p.CurrentHandIndex = h
			t.CurrentPlayerIndex = i
			*events = append(*events, Event{Type: EvtTurnAdvanced, PlayerID: p.ID, HandIndex: h})
			return
		}
	}
	finishRound(t, events)
}
