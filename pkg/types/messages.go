package types

// Client -> Server
//
//	join_table:      player_name, player_id?
//	leave_table:     player_id
//	place_bet:       player_id, amount
//	start_game:      {}
//	player_action:   player_id, action ("hit"|"stand"|"double"|"split"|"surrender"), hand_index?
//	get_table_state: player_id?
//	reset_table:     {}
//	new_round:       {}
//	chat_message:    player_id, player_name, message, timestamp?
type ClientMessage struct {
	Type       string `json:"type"`
	PlayerID   string `json:"player_id,omitempty"`
	PlayerName string `json:"player_name,omitempty"`
	Amount     *int   `json:"amount,omitempty"`
	Action     string `json:"action,omitempty"`
	HandIndex  *int   `json:"hand_index,omitempty"`
	Message    string `json:"message,omitempty"`
	Timestamp  string `json:"timestamp,omitempty"`
}

const (
	MsgJoinTable     = "join_table"
	MsgLeaveTable    = "leave_table"
	MsgPlaceBet      = "place_bet"
	MsgStartGame     = "start_game"
	MsgPlayerAction  = "player_action"
	MsgGetTableState = "get_table_state"
	MsgResetTable    = "reset_table"
	MsgNewRound      = "new_round"
	MsgChatMessage   = "chat_message"
)

// Server -> Client
//
//	replies to the requester: join_table_response, leave_table_response,
//	  place_bet_response, player_action_response, table_state, error
//	broadcasts: player_joined, player_left, bet_placed, game_started,
//	  player_action_broadcast, game_finished, new_round_started, table_reset,
//	  chat_message
//
// Broadcasts and errors always carry timestamp (RFC 3339, UTC).
type ServerMessage struct {
	Type       string         `json:"type"`
	Success    bool           `json:"success,omitempty"`
	Message    string         `json:"message,omitempty"`
	Code       string         `json:"code,omitempty"` // error envelopes from a rejected table operation
	PlayerID   string         `json:"player_id,omitempty"`
	PlayerName string         `json:"player_name,omitempty"`
	Player     *Player        `json:"player,omitempty"`
	Amount     int            `json:"amount,omitempty"`
	Action     string         `json:"action,omitempty"`
	HandIndex  *int           `json:"hand_index,omitempty"`
	Result     *ActionResult  `json:"result,omitempty"`
	Results    []PlayerResult `json:"results,omitempty"`
	DealerHand *Hand          `json:"dealer_hand,omitempty"`
	TableState *TableState    `json:"table_state,omitempty"`
	Timestamp  string         `json:"timestamp,omitempty"`
}

const (
	MsgJoinTableResponse     = "join_table_response"
	MsgLeaveTableResponse    = "leave_table_response"
	MsgPlaceBetResponse      = "place_bet_response"
	MsgPlayerActionResponse  = "player_action_response"
	MsgPlayerActionBroadcast = "player_action_broadcast"
	MsgTableState            = "table_state"
	MsgPlayerJoined          = "player_joined"
	MsgPlayerLeft            = "player_left"
	MsgBetPlaced             = "bet_placed"
	MsgGameStarted           = "game_started"
	MsgGameFinished          = "game_finished"
	MsgNewRoundStarted       = "new_round_started"
	MsgTableReset            = "table_reset"
	MsgError                 = "error"
)

// ActionResult describes the hand a player just acted on.
type ActionResult struct {
	HandIndex int  `json:"hand_index"`
	Hand      Hand `json:"hand"`
	Refund    int  `json:"refund,omitempty"`
}
