package engine

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

// StackedDeck builds a draw pile that yields cards in the order given,
// followed by a fresh single deck so long rounds never run dry.
func StackedDeck(draws ...Card) Deck {
	filler := NewShoe(1, nil)
	d := make(Deck, 0, len(filler)+len(draws))
	d = append(d, filler...)
	for i := len(draws) - 1; i >= 0; i-- {
		d = append(d, draws[i])
	}
	return d
}

// C is shorthand for a face-up card, mostly for tests: C(Ace, Spades).
func C(r Rank, s Suit) Card {
	return Card{Suit: s, Rank: r}
}
