package engine

type Suit string

const (
	SuitHearts   Suit = "hearts"
	SuitDiamonds Suit = "diamonds"
	SuitClubs    Suit = "clubs"
	SuitSpades   Suit = "spades"
)

var Suits = []Suit{SuitHearts, SuitDiamonds, SuitClubs, SuitSpades}

type Rank string

const (
	RankAce   Rank = "A"
	RankTwo   Rank = "2"
	RankThree Rank = "3"
	RankFour  Rank = "4"
	RankFive  Rank = "5"
	RankSix   Rank = "6"
	RankSeven Rank = "7"
	RankEight Rank = "8"
	RankNine  Rank = "9"
	RankTen   Rank = "10"
	RankJack  Rank = "J"
	RankQueen Rank = "Q"
	RankKing  Rank = "K"
)

var Ranks = []Rank{
	RankAce, RankTwo, RankThree, RankFour, RankFive, RankSix, RankSeven,
	RankEight, RankNine, RankTen, RankJack, RankQueen, RankKing,
}

// Card is a single playing card. Only Hidden ever changes after a card is
// drawn, when the dealer's hole card is turned over.
type Card struct {
	Suit   Suit
	Rank   Rank
	Hidden bool
}

// Value is the base value: aces count 1, faces 10.
func (c Card) Value() int {
	switch c.Rank {
	case RankAce:
		return 1
	case RankJack, RankQueen, RankKing, RankTen:
		return 10
	case RankTwo:
		return 2
	case RankThree:
		return 3
	case RankFour:
		return 4
	case RankFive:
		return 5
	case RankSix:
		return 6
	case RankSeven:
		return 7
	case RankEight:
		return 8
	case RankNine:
		return 9
	}
	return 0
}

func (c Card) String() string {
	return string(c.Rank) + " of " + string(c.Suit)
}
