package engine

import "math/rand/v2"

const (
	DefaultNumDecks    = 6
	DefaultReshuffleAt = 20
)

// Deck is a draw pile. Cards are drawn from the tail, so the shuffle order is
// the draw order.
type Deck []Card

// NewShoe builds numDecks full 52-card sets and shuffles them uniformly.
func NewShoe(numDecks int, rng *rand.Rand) Deck {
	if numDecks <= 0 {
		numDecks = DefaultNumDecks
	}
	d := make(Deck, 0, numDecks*len(Suits)*len(Ranks))
	for i := 0; i < numDecks; i++ {
		for _, s := range Suits {
			for _, r := range Ranks {
				d = append(d, Card{Suit: s, Rank: r})
			}
		}
	}
	shuffle := rand.Shuffle
	if rng != nil {
		shuffle = rng.Shuffle
	}
	shuffle(len(d), func(i, j int) { d[i], d[j] = d[j], d[i] })
	return d
}

func (d *Deck) Len() int { return len(*d) }

// pop removes the last card. The caller guarantees the pile is not empty.
func (d *Deck) pop() Card {
	old := *d
	c := old[len(old)-1]
	*d = old[:len(old)-1]
	return c
}
