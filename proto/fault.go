// Wire-level error codes
//
// This file is part of go-sedma.

package proto

// Code is one of the error tokens listed in the wire protocol.
type Code string

const (
	BadFormat         Code = "BAD_FORMAT"
	InvalidValue      Code = "INVALID_VALUE"
	UnknownCmd        Code = "UNKNOWN_CMD"
	NotLogged         Code = "NOT_LOGGED"
	NickTaken         Code = "NICK_TAKEN"
	BadSession        Code = "BAD_SESSION"
	AlreadyOnline     Code = "ALREADY_ONLINE"
	BadState          Code = "BAD_STATE"
	NoSuchRoom        Code = "NO_SUCH_ROOM"
	RoomFull          Code = "ROOM_FULL"
	LimitReached      Code = "LIMIT_REACHED"
	NotHost           Code = "NOT_HOST"
	NotEnoughPlayers  Code = "NOT_ENOUGH_PLAYERS"
	Paused            Code = "PAUSED"
	NotYourTurn       Code = "NOT_YOUR_TURN"
	NoSuchCard        Code = "NO_SUCH_CARD"
	IllegalCard       Code = "ILLEGAL_CARD"
	WishRequired      Code = "WISH_REQUIRED"
	BadWish           Code = "BAD_WISH"
	MustStackOrDraw   Code = "MUST_STACK_OR_DRAW"
)

// Fault pairs a wire error code with a human-readable message token, the
// unit a handler emits as a single ERR line.
type Fault struct {
	Code Code
	Msg  string
}

func (f *Fault) Error() string {
	return string(f.Code) + ": " + f.Msg
}

// NewFault constructs a Fault value.
func NewFault(code Code, msg string) *Fault {
	return &Fault{Code: code, Msg: msg}
}

// Line renders the fault as the literal "ERR <cmd> code=<CODE> msg=<msg>"
// wire line for the given command name (or "?" when the command itself
// could not be determined).
func (f *Fault) Line(cmd string) string {
	if cmd == "" {
		cmd = "?"
	}
	return Format(ERR, cmd, "code", string(f.Code), "msg", f.Msg)
}
