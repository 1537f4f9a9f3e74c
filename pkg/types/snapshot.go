package types

// TableState is the serialized table view pushed to clients.
//
//	phase: "waiting" | "playing" | "dealer_turn" | "finished"
//	current_player_index: index into the active players, -1 outside PLAYING
//	deck_count: cards left in the shoe
type TableState struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Phase              string   `json:"phase"`
	MinBet             int      `json:"min_bet"`
	MaxBet             int      `json:"max_bet"`
	MaxPlayers         int      `json:"max_players"`
	CurrentPlayerIndex int      `json:"current_player_index"`
	Round              int      `json:"round"`
	Players            []Player `json:"players"`
	Dealer             Dealer   `json:"dealer"`
	DeckCount          int      `json:"deck_count"`
}

type Player struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Chips            int    `json:"chips"`
	SeatPosition     int    `json:"seat_position"`
	IsActive         bool   `json:"is_active"`
	IsConnected      bool   `json:"is_connected"`
	CurrentHandIndex int    `json:"current_hand_index"`
	Hands            []Hand `json:"hands"`
	TotalBet         int    `json:"total_bet"`
}

type Hand struct {
	Cards         []Card `json:"cards"`
	Value         int    `json:"value"`
	Bet           int    `json:"bet"`
	IsSplit       bool   `json:"is_split"`
	IsDoubled     bool   `json:"is_doubled"`
	IsSurrendered bool   `json:"is_surrendered"`
	IsFinished    bool   `json:"is_finished"`
	IsBlackjack   bool   `json:"is_blackjack"`
	IsBust        bool   `json:"is_bust"`
	CanSplit      bool   `json:"can_split"`
	CanDouble     bool   `json:"can_double"`
}

// Card is a face-up card, or the opaque hole-card placeholder
// {"suit":"","rank":"","value":0,"hidden":true}.
type Card struct {
	Suit   string `json:"suit"`
	Rank   string `json:"rank"`
	Value  int    `json:"value"`
	Hidden bool   `json:"hidden"`
}

type Dealer struct {
	Hand      Hand  `json:"hand"`
	Upcard    *Card `json:"upcard"`
	ShouldHit bool  `json:"should_hit"`
}

type HandResult struct {
	Cards    []Card `json:"cards"`
	Value    int    `json:"value"`
	Bet      int    `json:"bet"`
	Winnings int    `json:"winnings"`
	Result   string `json:"result"`
}

type PlayerResult struct {
	PlayerID string       `json:"player_id"`
	Hands    []HandResult `json:"hands"`
	Winnings int          `json:"winnings"`
	TotalBet int          `json:"total_bet"`
}

// TableSummary is one row of the table directory.
type TableSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	State       string `json:"state"`
	PlayerCount int    `json:"player_count"`
	MaxPlayers  int    `json:"max_players"`
	MinBet      int    `json:"min_bet"`
	MaxBet      int    `json:"max_bet"`
	IsFull      bool   `json:"is_full"`
}
