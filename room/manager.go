// Room table and phase transitions
//
// This file is part of go-sedma.

package room

import (
	"strconv"
	"time"

	sedma "go-sedma"
	"go-sedma/engine"
	"go-sedma/proto"
)

// Manager owns a fixed-capacity array of rooms. All of its methods are
// meant to be called from a single goroutine (the lobby coordinator);
// see room.go's package comment.
type Manager struct {
	rooms  []*Room
	nextID int
}

// NewManager allocates a room table capped at maxRooms entries (spec §6:
// "max_rooms ≤ 64").
func NewManager(maxRooms int) *Manager {
	return &Manager{rooms: make([]*Room, maxRooms)}
}

// List returns every occupied room, for LIST_ROOMS.
func (m *Manager) List() []*Room {
	var out []*Room
	for _, r := range m.rooms {
		if r != nil && r.phase != Empty {
			out = append(out, r)
		}
	}
	return out
}

// RoomByID looks a room up by its id.
func (m *Manager) RoomByID(id int) (*Room, bool) {
	for _, r := range m.rooms {
		if r != nil && r.phase != Empty && r.id == id {
			return r, true
		}
	}
	return nil, false
}

// Create allocates a new room in the LOBBY phase with host seated at
// position 0, per spec §4.4's CREATE_ROOM.
func (m *Manager) Create(host Player, name string, size int) (*Room, error) {
	if size < MinSize || size > MaxSize {
		return nil, proto.NewFault(proto.InvalidValue, "bad_room_size")
	}

	slot := -1
	for i, r := range m.rooms {
		if r == nil || r.phase == Empty {
			slot = i
			break
		}
	}
	if slot == -1 {
		return nil, proto.NewFault(proto.LimitReached, "no_free_room")
	}

	m.nextID++
	r := &Room{
		id:      m.nextID,
		name:    name,
		size:    size,
		phase:   Lobby,
		hostIdx: 0,
	}
	r.players[0] = host
	r.pcount = 1
	m.rooms[slot] = r
	return r, nil
}

// Join seats p in r, per spec §4.4's JOIN_ROOM.
func (m *Manager) Join(r *Room, p Player) error {
	if r.phase != Lobby {
		return proto.NewFault(proto.BadState, "room_not_in_lobby")
	}
	if r.pcount >= r.size {
		return proto.NewFault(proto.RoomFull, "room_full")
	}

	r.players[r.pcount] = p
	r.pcount++
	r.broadcastExcept(
		proto.Format(proto.EVT, "PLAYER_JOIN", "nick", p.Nick(), "host", "0"),
		p,
	)
	return nil
}

// Leave removes p from whichever seat it occupies in r, applying
// spec §4.3's in-lobby or mid-game removal rules, host reassignment, and
// room/phase collapse. It is also used by the lobby for LOGOUT and
// offline-reap.
func (m *Manager) Leave(r *Room, p Player) {
	pos := r.Pos(p)
	if pos == -1 {
		return
	}

	wasHost := pos == r.hostIdx
	midGame := r.phase == Game

	if midGame && r.game != nil {
		r.game.RemovePlayer(pos)
	}

	for i := pos; i < r.pcount-1; i++ {
		r.players[i] = r.players[i+1]
	}
	r.players[r.pcount-1] = nil
	r.pcount--

	if r.pcount == 0 {
		m.destroy(r)
		return
	}

	if r.hostIdx > pos {
		r.hostIdx--
	} else if r.hostIdx >= r.pcount {
		r.hostIdx = r.pcount - 1
	}

	r.broadcastAll(proto.Format(proto.EVT, "PLAYER_LEAVE", "nick", p.Nick()))

	if wasHost {
		r.hostIdx = 0
		r.broadcastAll(proto.Format(proto.EVT, "HOST", "nick", r.players[0].Nick()))
	}

	if !midGame {
		return
	}

	switch {
	case r.pcount == 1:
		winner := r.players[0].Nick()
		r.broadcastAll(proto.Format(proto.EVT, "GAME_END", "winner", winner))
		m.endGame(r)
	case r.pcount < MinSize:
		r.broadcastAll(proto.Format(proto.EVT, "GAME_ABORT", "reason", "not_enough_players"))
		m.endGame(r)
	default:
		m.updatePause(r)
	}
}

func (m *Manager) destroy(r *Room) {
	for i := range m.rooms {
		if m.rooms[i] == r {
			m.rooms[i] = nil
			return
		}
	}
}

func (m *Manager) endGame(r *Room) {
	r.phase = Lobby
	r.paused = false
	r.game = nil
}

// Start begins a game in r, per spec §4.4's START_GAME.
func (m *Manager) Start(r *Room, p Player, seed int64) error {
	if !r.IsHost(p) {
		return proto.NewFault(proto.NotHost, "not_host")
	}
	if r.phase != Lobby {
		return proto.NewFault(proto.BadState, "room_not_in_lobby")
	}
	if r.pcount < MinSize {
		return proto.NewFault(proto.NotEnoughPlayers, "need_at_least_two")
	}

	g := engine.New(seed, r.pcount)
	g.Deal(engine.CardsEach)
	g.PickStart()
	r.game = g
	r.phase = Game
	r.paused = false

	r.broadcastAll(proto.Format(proto.EVT, "GAME_START", "players", strconv.Itoa(r.pcount)))
	for i := 0; i < r.pcount; i++ {
		r.SendHand(i)
	}
	r.broadcastAll(proto.Format(proto.EVT, "TOP",
		"card", g.TopCard.String(),
		"active_suit", g.ActiveSuit.String(),
		"penalty", strconv.Itoa(g.Penalty),
	))
	r.broadcastAll(proto.Format(proto.EVT, "TURN", "nick", r.seatNick(g.TurnPos)))
	return nil
}

// Play applies a PLAY command in r on behalf of p.
func (m *Manager) Play(r *Room, p Player, card sedma.Card, wish sedma.Suit, wishGiven bool) error {
	if r.phase != Game || r.game == nil {
		return proto.NewFault(proto.BadState, "no_active_game")
	}
	if r.paused {
		return proto.NewFault(proto.Paused, "wait_for_reconnect")
	}

	pos := r.Pos(p)
	if pos == -1 {
		return proto.NewFault(proto.BadState, "not_seated")
	}

	res, err := r.game.Play(pos, card, wish, wishGiven)
	if err != nil {
		return translateEngineErr(err)
	}

	pairs := []string{"nick", p.Nick(), "card", card.String()}
	if card.Rank() == sedma.Queen {
		pairs = append(pairs, "wish", wish.String())
	}
	r.broadcastAll(proto.Format(proto.EVT, "PLAYED", pairs...))

	if res.Ended {
		winner := r.players[res.Winner].Nick()
		r.broadcastAll(proto.Format(proto.EVT, "GAME_END", "winner", winner))
		m.endGame(r)
		return nil
	}

	r.broadcastAll(proto.Format(proto.EVT, "TOP",
		"card", r.game.TopCard.String(),
		"active_suit", r.game.ActiveSuit.String(),
		"penalty", strconv.Itoa(r.game.Penalty),
	))
	r.broadcastAll(proto.Format(proto.EVT, "TURN", "nick", r.seatNick(r.game.TurnPos)))
	return nil
}

// Draw applies a DRAW command in r on behalf of p.
func (m *Manager) Draw(r *Room, p Player) error {
	if r.phase != Game || r.game == nil {
		return proto.NewFault(proto.BadState, "no_active_game")
	}
	if r.paused {
		return proto.NewFault(proto.Paused, "wait_for_reconnect")
	}

	pos := r.Pos(p)
	if pos == -1 {
		return proto.NewFault(proto.BadState, "not_seated")
	}

	_, err := r.game.Draw(pos)
	if err != nil {
		return translateEngineErr(err)
	}

	r.SendHand(pos)
	r.broadcastAll(proto.Format(proto.EVT, "TURN", "nick", r.seatNick(r.game.TurnPos)))
	return nil
}

// updatePause re-evaluates r's pause state after an online/offline
// transition, per spec §4.3's pause/resume rules.
func (m *Manager) updatePause(r *Room) {
	if r.phase != Game {
		return
	}

	if r.anyOffline() {
		if !r.paused {
			r.paused = true
			r.pauseStartedAt = time.Now()
			offlineNick := ""
			for i := 0; i < r.pcount; i++ {
				if !r.players[i].Online() {
					offlineNick = r.players[i].Nick()
					break
				}
			}
			r.broadcastOnline(proto.Format(proto.EVT, "GAME_PAUSED", "nick", offlineNick, "timeout", "120"))
		}
		return
	}

	if r.paused {
		r.paused = false
		r.broadcastAll(proto.Format(proto.EVT, "GAME_RESUMED"))
	}
}

// NotifyOnline must be called whenever a seated player's online status
// changes (RESUME, disconnect, offline reap).
func (m *Manager) NotifyOnline(r *Room) {
	m.updatePause(r)
}

// Tick drives the pause-timeout abort described in spec §4.3 ("now -
// pause_started > 120s"). It is meant to be called by the lobby
// coordinator's periodic timer.
func (m *Manager) Tick(now time.Time) {
	for _, r := range m.rooms {
		if r == nil || r.phase != Game || !r.paused {
			continue
		}
		if now.Sub(r.pauseStartedAt) > PauseTimeout {
			r.broadcastAll(proto.Format(proto.EVT, "GAME_ABORT", "reason", "reconnect_timeout"))
			m.endGame(r)
		}
	}
}

func translateEngineErr(err error) error {
	switch err {
	case engine.ErrBadState:
		return proto.NewFault(proto.BadState, "game_not_running")
	case engine.ErrNotYourTurn:
		return proto.NewFault(proto.NotYourTurn, "not_your_turn")
	case engine.ErrNoSuchCard:
		return proto.NewFault(proto.NoSuchCard, "no_such_card")
	case engine.ErrIllegalCard:
		return proto.NewFault(proto.IllegalCard, "illegal_card")
	case engine.ErrWishRequired:
		return proto.NewFault(proto.WishRequired, "wish_required")
	case engine.ErrBadWish:
		return proto.NewFault(proto.BadWish, "bad_wish")
	case engine.ErrMustStackOrDraw:
		return proto.NewFault(proto.MustStackOrDraw, "must_stack_or_draw")
	default:
		return proto.NewFault(proto.BadState, "internal_error")
	}
}
