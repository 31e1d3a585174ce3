// Client slot table
//
// This file is part of go-sedma.

package lobby

import (
	"time"

	"go-sedma/room"
)

// Conn is the coordinator's view of a connection: enough to push a line
// out and sever it. go-sedma/transport's TCP connections implement this;
// the coordinator never touches a net.Conn directly.
type Conn interface {
	Send(line string)
	Close()
}

// slotState mirrors spec §3's client slot state ∈ {EMPTY, CONNECTED}.
type slotState uint8

const (
	slotEmpty slotState = iota
	slotConnected
)

// clientSlot is one reusable client record. A slot is allocated on
// accept and only freed on LOGOUT, a strike-out, offline-timeout expiry,
// or, for the slot a fresh connection was given, when that connection's
// RESUME moves it onto the older offline slot.
type clientSlot struct {
	state slotState

	nick    string
	session string

	online bool
	conn   Conn
	connID int

	roomID int

	lastSeen time.Time
	strikes  int
}

func (s *clientSlot) reset() {
	*s = clientSlot{roomID: -1}
}

// Send implements room.Player.
func (s *clientSlot) Send(line string) {
	if s.conn != nil {
		s.conn.Send(line)
	}
}

// Nick implements room.Player.
func (s *clientSlot) Nick() string { return s.nick }

// Online implements room.Player.
func (s *clientSlot) Online() bool { return s.online }

var _ room.Player = (*clientSlot)(nil)
