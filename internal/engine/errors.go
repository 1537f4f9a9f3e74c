package engine

import "fmt"

type Code string

const (
	CodeNotFound          Code = "not_found"
	CodeInvalidTurn       Code = "invalid_turn"
	CodeInvalidState      Code = "invalid_state"
	CodeInvalidAction     Code = "invalid_action"
	CodeInsufficientFunds Code = "insufficient_funds"
	CodeTableFull         Code = "table_full"
)

// Error is a rejected operation. Message is safe to show to players.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is matches by code so callers can compare against the Err* sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var ErrNotFound = &Error{Code: CodeNotFound, Message: "not found"}
var ErrInvalidTurn = &Error{Code: CodeInvalidTurn, Message: "not your turn"}
var ErrInvalidState = &Error{Code: CodeInvalidState, Message: "invalid state"}
var ErrInvalidAction = &Error{Code: CodeInvalidAction, Message: "invalid action"}
var ErrInsufficientFunds = &Error{Code: CodeInsufficientFunds, Message: "insufficient chips"}
var ErrTableFull = &Error{Code: CodeTableFull, Message: "table is full"}

func newErr(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}
