// Room manager
//
// This file is part of go-sedma.
//
// Owns a fixed-capacity table of rooms, each a phase state machine
// (EMPTY→LOBBY→GAME→LOBBY) wrapping one engine.Game, grounded on the
// teacher's sched.fifo actor (sched/fifo.go) for the single-owner,
// channel-free-internally shape: callers are expected to invoke Manager's
// methods only from the lobby coordinator's single goroutine, so none of
// this package takes locks — the serialization spec §5 demands is the
// caller's job, the same division sched.fifo draws with its own `q []kgp.
// Agent` slice.

package room

import (
	"fmt"
	"time"

	"go-sedma/engine"
	"go-sedma/proto"
)

// Player is the room manager's view of a connected client: just enough
// to address it and describe it in broadcasts. go-sedma/lobby's client
// slot type implements this.
type Player interface {
	Send(line string)
	Nick() string
	Online() bool
}

// Phase is a room's position in its lifecycle state machine.
type Phase uint8

const (
	Empty Phase = iota
	Lobby
	Game
)

func (p Phase) String() string {
	switch p {
	case Empty:
		return "EMPTY"
	case Lobby:
		return "LOBBY"
	case Game:
		return "GAME"
	default:
		return "?"
	}
}

// MinSize and MaxSize bound a room's seat count per spec §4.4's
// CREATE_ROOM precondition (2 ≤ size ≤ 4).
const (
	MinSize = 2
	MaxSize = 4
)

// PauseTimeout is how long a paused game waits for every player to come
// back online before it is aborted (spec §4.3).
const PauseTimeout = 120 * time.Second

// Room is one table: a roster of up to MaxSize players sharing a game.
type Room struct {
	id   int
	name string
	size int

	phase Phase

	players  [MaxSize]Player
	pcount   int
	hostIdx  int

	paused         bool
	pauseStartedAt time.Time

	game *engine.Game
}

// ID returns the room's process-unique, monotonically increasing id.
func (r *Room) ID() int { return r.id }

// Name returns the room's display name.
func (r *Room) Name() string { return r.name }

// Size returns the room's seat capacity.
func (r *Room) Size() int { return r.size }

// Phase returns the room's current lifecycle phase.
func (r *Room) Phase() Phase { return r.phase }

// Paused reports whether the room's game is currently paused for a
// disconnected player.
func (r *Room) Paused() bool { return r.paused }

// PlayerCount returns how many seats are currently occupied.
func (r *Room) PlayerCount() int { return r.pcount }

// HostNick returns the current host's nickname, or "" if the room is
// empty.
func (r *Room) HostNick() string {
	if r.pcount == 0 {
		return ""
	}
	return r.players[r.hostIdx].Nick()
}

// Game exposes the room's embedded engine, or nil outside the GAME
// phase.
func (r *Room) Game() *engine.Game { return r.game }

// IsHost reports whether p occupies the room's host seat.
func (r *Room) IsHost(p Player) bool {
	return r.pcount > 0 && r.players[r.hostIdx] == p
}

// Pos returns p's seat index, or -1 if p is not seated in this room.
func (r *Room) Pos(p Player) int {
	for i := 0; i < r.pcount; i++ {
		if r.players[i] == p {
			return i
		}
	}
	return -1
}

// anyOffline reports whether any occupied seat belongs to an offline
// player.
func (r *Room) anyOffline() bool {
	for i := 0; i < r.pcount; i++ {
		if !r.players[i].Online() {
			return true
		}
	}
	return false
}

// broadcastAll sends line to every occupied seat.
func (r *Room) broadcastAll(line string) {
	for i := 0; i < r.pcount; i++ {
		r.players[i].Send(line)
	}
}

// Broadcast sends line to every occupied seat. Exported for the lobby
// coordinator, which needs it for online/offline notices that fall
// outside any single Manager operation.
func (r *Room) Broadcast(line string) {
	r.broadcastAll(line)
}

// broadcastOnline sends line to every occupied seat that is currently
// online.
func (r *Room) broadcastOnline(line string) {
	for i := 0; i < r.pcount; i++ {
		if r.players[i].Online() {
			r.players[i].Send(line)
		}
	}
}

// broadcastExcept sends line to every occupied seat other than except.
func (r *Room) broadcastExcept(line string, except Player) {
	for i := 0; i < r.pcount; i++ {
		if r.players[i] != except {
			r.players[i].Send(line)
		}
	}
}

// SendRoster tells p who else is in the room, one EVT PLAYER_JOIN-shaped
// line per occupant (used on JOIN and on RESUME to rebuild a client's
// view of the room it was in).
func (r *Room) SendRoster(p Player) {
	for i := 0; i < r.pcount; i++ {
		nick := r.players[i].Nick()
		host := "0"
		if i == r.hostIdx {
			host = "1"
		}
		p.Send(proto.Format(proto.EVT, "PLAYER_JOIN", "nick", nick, "host", host))
	}
}

// SendState tells p the room's current phase/pause/game snapshot.
func (r *Room) SendState(p Player) {
	pairs := []string{
		"room", fmt.Sprint(r.id),
		"phase", r.phase.String(),
	}
	if r.paused {
		pairs = append(pairs, "paused", "1")
	} else {
		pairs = append(pairs, "paused", "0")
	}
	if r.phase == Game && r.game != nil {
		pairs = append(pairs,
			"top", r.game.TopCard.String(),
			"active_suit", r.game.ActiveSuit.String(),
			"penalty", fmt.Sprint(r.game.Penalty),
			"turn", r.seatNick(r.game.TurnPos),
		)
	}
	p.Send(proto.Format(proto.RESP, "STATE", pairs...))
}

// SendHand privately tells the player at seat pos their current hand.
func (r *Room) SendHand(pos int) {
	if r.game == nil {
		return
	}
	hand := r.game.Hand(pos)
	cards := ""
	for i, c := range hand {
		if i > 0 {
			cards += ","
		}
		cards += c.String()
	}
	r.players[pos].Send(proto.Format(proto.EVT, "HAND", "cards", cards))
}

func (r *Room) seatNick(pos int) string {
	if pos < 0 || pos >= r.pcount {
		return ""
	}
	return r.players[pos].Nick()
}

// RoomListLine renders the EVT ROOM line LIST_ROOMS emits for this room,
// supplemented (per SPEC_FULL §5) with host_nick and occupancy so a
// client can populate a room browser without a second round trip.
func (r *Room) RoomListLine() string {
	return proto.Format(proto.EVT, "ROOM",
		"room", fmt.Sprint(r.id),
		"name", r.name,
		"phase", r.phase.String(),
		"paused", boolTok(r.paused),
		"pcount", fmt.Sprint(r.pcount),
		"size", fmt.Sprint(r.size),
		"host_nick", r.HostNick(),
	)
}

func boolTok(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
