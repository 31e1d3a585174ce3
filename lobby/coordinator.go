// Session/lobby coordinator
//
// This file is part of go-sedma.
//
// Coordinator is the single logical owner spec §5 calls for: one
// goroutine drains cmdCh and is the only mutator of the client slot
// table and (via room.Manager) the room table. Every other goroutine in
// the process — one reader per connection, the operator console, the
// signal handler — only ever produces Command values onto cmdCh; none of
// them touch slot or room state directly. This is the actor shape of the
// teacher's sched.fifo (sched/fifo.go): a select loop over a handful of
// channels that is the sole writer of its own state.

package lobby

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	sedma "go-sedma"
	"go-sedma/proto"
	"go-sedma/room"
)

// IdleTimeout and OfflineTimeout are spec §4.4's two per-client timers.
const (
	IdleTimeout    = 15 * time.Second
	OfflineTimeout = 120 * time.Second
	MaxStrikes     = 3
)

// CommandKind distinguishes the events a transport can enqueue.
type CommandKind uint8

const (
	CmdConnect CommandKind = iota
	CmdLine
	CmdFrameError
	CmdDisconnect
)

// Command is one event crossing from a transport goroutine into the
// coordinator's single owning goroutine.
type Command struct {
	Kind   CommandKind
	ConnID int
	Conn   Conn   // set on CmdConnect
	Line   string // set on CmdLine
	Reason string // set on CmdFrameError
}

// Coordinator owns the client slot table and the room table. All of its
// unexported methods assume they run on the goroutine draining cmdCh;
// see Run.
type Coordinator struct {
	slots   []*clientSlot
	byConn  map[int]*clientSlot
	rooms   *room.Manager
	cmdCh   chan Command
	shut    chan struct{}
}

// NewCoordinator allocates a slot table capped at maxClients (spec §6:
// "max_clients ≤ 128") backed by the given room table.
func NewCoordinator(maxClients int, rooms *room.Manager) *Coordinator {
	slots := make([]*clientSlot, maxClients)
	for i := range slots {
		slots[i] = &clientSlot{roomID: -1}
	}
	return &Coordinator{
		slots:  slots,
		byConn: make(map[int]*clientSlot),
		rooms:  rooms,
		cmdCh:  make(chan Command, 256),
		shut:   make(chan struct{}),
	}
}

// Enqueue hands a Command to the coordinator's goroutine. Safe to call
// from any goroutine.
func (c *Coordinator) Enqueue(cmd Command) {
	select {
	case c.cmdCh <- cmd:
	case <-c.shut:
	}
}

// Run drains cmdCh on the calling goroutine until Stop is called,
// driving the 250ms tick spec §5 specifies for timeouts. It is meant to
// be the only goroutine that ever calls the coordinator's unexported
// methods.
func (c *Coordinator) Run() {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case cmd := <-c.cmdCh:
			c.dispatch(cmd)
		case now := <-ticker.C:
			c.tick(now)
		case <-c.shut:
			return
		}
	}
}

// Stop ends Run's loop.
func (c *Coordinator) Stop() {
	close(c.shut)
}

func (c *Coordinator) dispatch(cmd Command) {
	switch cmd.Kind {
	case CmdConnect:
		c.onConnect(cmd.ConnID, cmd.Conn)
	case CmdLine:
		c.onLine(cmd.ConnID, cmd.Line)
	case CmdFrameError:
		c.onFrameError(cmd.ConnID, cmd.Reason)
	case CmdDisconnect:
		c.onDisconnect(cmd.ConnID)
	}
}

// freeSlot finds the lowest-indexed EMPTY slot, per spec §4.4.
func (c *Coordinator) freeSlot() *clientSlot {
	for _, s := range c.slots {
		if s.state == slotEmpty {
			return s
		}
	}
	return nil
}

func (c *Coordinator) onConnect(connID int, conn Conn) {
	s := c.freeSlot()
	if s == nil {
		conn.Close()
		return
	}
	s.reset()
	s.state = slotConnected
	s.online = true
	s.conn = conn
	s.connID = connID
	s.lastSeen = time.Now()
	c.byConn[connID] = s
}

func (c *Coordinator) onDisconnect(connID int) {
	s, ok := c.byConn[connID]
	if !ok {
		return
	}
	delete(c.byConn, connID)
	s.online = false
	s.conn = nil
	if r, ok := c.roomOf(s); ok {
		r.Broadcast(proto.Format(proto.EVT, "PLAYER_OFFLINE", "nick", s.nick))
		c.rooms.NotifyOnline(r)
	}
}

func (c *Coordinator) onFrameError(connID int, reason string) {
	s, ok := c.byConn[connID]
	if !ok {
		return
	}
	s.Send(proto.NewFault(proto.BadFormat, reason).Line("?"))
	c.strike(s)
}

func (c *Coordinator) onLine(connID int, line string) {
	s, ok := c.byConn[connID]
	if !ok {
		return
	}
	s.lastSeen = time.Now()

	msg, err := proto.Parse(line)
	if err != nil {
		s.Send(proto.NewFault(proto.BadFormat, "malformed_line").Line("?"))
		c.strike(s)
		return
	}
	if msg.Type != proto.REQ {
		s.Send(proto.NewFault(proto.BadFormat, "expected_req").Line(msg.Cmd))
		c.strike(s)
		return
	}

	if fault := c.handle(s, msg); fault != nil {
		s.Send(fault.Line(msg.Cmd))
	}
}

// strike counts one framing/parse violation; the 4th successive one
// drops the slot, the 3rd does not, per spec §4.4/§8. The threshold is
// checked against the count already accumulated from prior violations,
// before this one is added, so the slot survives exactly three strikes.
func (c *Coordinator) strike(s *clientSlot) {
	if s.strikes >= MaxStrikes {
		c.dropSlot(s)
		return
	}
	s.strikes++
}

// dropSlot closes the connection and frees the slot outright (used for
// strike-outs; LOGOUT and the offline reap in tick free slots themselves).
func (c *Coordinator) dropSlot(s *clientSlot) {
	if s.roomID != -1 {
		if r, ok := c.rooms.RoomByID(s.roomID); ok {
			c.rooms.Leave(r, s)
		}
		s.roomID = -1
	}
	if s.conn != nil {
		s.conn.Close()
	}
	delete(c.byConn, s.connID)
	s.reset()
}

func (c *Coordinator) handle(s *clientSlot, msg *proto.Message) *proto.Fault {
	switch msg.Cmd {
	case "LOGIN":
		return c.handleLogin(s, msg)
	case "RESUME":
		return c.handleResume(s, msg)
	case "LIST_ROOMS":
		return c.handleListRooms(s, msg)
	case "CREATE_ROOM":
		return c.handleCreateRoom(s, msg)
	case "JOIN_ROOM":
		return c.handleJoinRoom(s, msg)
	case "LEAVE_ROOM":
		return c.handleLeaveRoom(s, msg)
	case "START_GAME":
		return c.handleStartGame(s, msg)
	case "PLAY":
		return c.handlePlay(s, msg)
	case "DRAW":
		return c.handleDraw(s, msg)
	case "LOGOUT":
		return c.handleLogout(s, msg)
	case "PING":
		return c.handlePing(s, msg)
	default:
		return proto.NewFault(proto.UnknownCmd, strings.ToLower(msg.Cmd))
	}
}

func requireLoggedIn(s *clientSlot) *proto.Fault {
	if s.nick == "" {
		return proto.NewFault(proto.NotLogged, "not_logged_in")
	}
	return nil
}

func (c *Coordinator) findByNick(nick string) *clientSlot {
	for _, s := range c.slots {
		if s.state == slotConnected && s.nick == nick {
			return s
		}
	}
	return nil
}

func newSessionToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (c *Coordinator) handleLogin(s *clientSlot, msg *proto.Message) *proto.Fault {
	nick, ok := msg.Get("nick")
	if !ok || nick == "" || len(nick) >= 32 {
		return proto.NewFault(proto.InvalidValue, "bad_nick")
	}
	if s.nick != "" {
		return proto.NewFault(proto.BadState, "already_logged_in")
	}
	if existing := c.findByNick(nick); existing != nil {
		if existing.online {
			return proto.NewFault(proto.NickTaken, "already_online")
		}
		return proto.NewFault(proto.NickTaken, "use_resume_offline")
	}

	s.nick = nick
	s.session = newSessionToken()
	s.Send(proto.Format(proto.RESP, "LOGIN", "ok", "1", "session", s.session))
	return nil
}

func (c *Coordinator) handleResume(s *clientSlot, msg *proto.Message) *proto.Fault {
	nick, ok1 := msg.Get("nick")
	session, ok2 := msg.Get("session")
	if !ok1 || !ok2 || nick == "" || session == "" {
		return proto.NewFault(proto.InvalidValue, "missing_keys")
	}

	old := c.findByNick(nick)
	if old == nil || old.online || old.session != session {
		return proto.NewFault(proto.BadSession, "no_such_session")
	}

	// Adopt old's identity onto this connection; free the fresh slot this
	// connection was allocated under.
	connID := s.connID
	conn := s.conn
	s.reset()
	c.byConn[connID] = old

	old.conn = conn
	old.connID = connID
	old.online = true
	old.lastSeen = time.Now()
	old.strikes = 0

	old.Send(proto.Format(proto.RESP, "RESUME", "ok", "1"))

	if old.roomID != -1 {
		if r, ok := c.rooms.RoomByID(old.roomID); ok {
			r.Broadcast(proto.Format(proto.EVT, "PLAYER_ONLINE", "nick", old.nick))
			r.SendRoster(old)
			r.SendState(old)
			if r.Phase() == room.Game {
				if pos := r.Pos(old); pos != -1 {
					r.SendHand(pos)
				}
			}
			c.rooms.NotifyOnline(r)
		}
	}
	return nil
}

func (c *Coordinator) handleListRooms(s *clientSlot, _ *proto.Message) *proto.Fault {
	if f := requireLoggedIn(s); f != nil {
		return f
	}
	list := c.rooms.List()
	s.Send(proto.Format(proto.RESP, "LIST_ROOMS", "count", strconv.Itoa(len(list))))
	for _, r := range list {
		s.Send(r.RoomListLine())
	}
	return nil
}

func (c *Coordinator) handleCreateRoom(s *clientSlot, msg *proto.Message) *proto.Fault {
	if f := requireLoggedIn(s); f != nil {
		return f
	}
	if s.roomID != -1 {
		return proto.NewFault(proto.BadState, "already_in_room")
	}
	name, _ := msg.Get("name")
	sizeTok, ok := msg.Get("size")
	if !ok {
		return proto.NewFault(proto.InvalidValue, "missing_size")
	}
	size, err := strconv.Atoi(sizeTok)
	if err != nil {
		return proto.NewFault(proto.InvalidValue, "bad_size")
	}

	r, err := c.rooms.Create(s, name, size)
	if err != nil {
		return err.(*proto.Fault)
	}
	s.roomID = r.ID()
	s.Send(proto.Format(proto.RESP, "CREATE_ROOM", "ok", "1", "room", strconv.Itoa(r.ID())))
	return nil
}

func (c *Coordinator) handleJoinRoom(s *clientSlot, msg *proto.Message) *proto.Fault {
	if f := requireLoggedIn(s); f != nil {
		return f
	}
	if s.roomID != -1 {
		return proto.NewFault(proto.BadState, "already_in_room")
	}
	roomTok, ok := msg.Get("room")
	if !ok {
		return proto.NewFault(proto.InvalidValue, "missing_room")
	}
	id, err := strconv.Atoi(roomTok)
	if err != nil {
		return proto.NewFault(proto.InvalidValue, "bad_room")
	}
	r, ok := c.rooms.RoomByID(id)
	if !ok {
		return proto.NewFault(proto.NoSuchRoom, "no_such_room")
	}

	if joinErr := c.rooms.Join(r, s); joinErr != nil {
		return joinErr.(*proto.Fault)
	}
	s.roomID = r.ID()
	s.Send(proto.Format(proto.RESP, "JOIN_ROOM", "ok", "1", "room", strconv.Itoa(r.ID())))
	r.SendRoster(s)
	r.SendState(s)
	return nil
}

func (c *Coordinator) handleLeaveRoom(s *clientSlot, _ *proto.Message) *proto.Fault {
	if f := requireLoggedIn(s); f != nil {
		return f
	}
	if s.roomID == -1 {
		return proto.NewFault(proto.BadState, "not_in_room")
	}
	r, ok := c.rooms.RoomByID(s.roomID)
	if ok {
		c.rooms.Leave(r, s)
	}
	s.roomID = -1
	// spec §9's open question: emit the corrected RESP LEAVE_ROOM, never
	// the source's RESP LEAVE_ROO typo.
	s.Send(proto.Format(proto.RESP, "LEAVE_ROOM", "ok", "1"))
	return nil
}

func (c *Coordinator) handleStartGame(s *clientSlot, _ *proto.Message) *proto.Fault {
	if f := requireLoggedIn(s); f != nil {
		return f
	}
	r, ok := c.roomOf(s)
	if !ok {
		return proto.NewFault(proto.BadState, "not_in_room")
	}
	seed := time.Now().UnixNano() ^ int64(r.ID())
	if err := c.rooms.Start(r, s, seed); err != nil {
		return err.(*proto.Fault)
	}
	s.Send(proto.Format(proto.RESP, "START_GAME", "ok", "1"))
	return nil
}

func (c *Coordinator) handlePlay(s *clientSlot, msg *proto.Message) *proto.Fault {
	if f := requireLoggedIn(s); f != nil {
		return f
	}
	r, ok := c.roomOf(s)
	if !ok {
		return proto.NewFault(proto.BadState, "not_in_room")
	}
	cardTok, ok := msg.Get("card")
	if !ok {
		return proto.NewFault(proto.InvalidValue, "missing_card")
	}
	card, perr := sedma.ParseCard(cardTok)
	if perr != nil {
		return proto.NewFault(proto.InvalidValue, "bad_card_token")
	}
	var wish sedma.Suit
	wishGiven := false
	if wishTok, ok := msg.Get("wish"); ok {
		w, wok := sedma.ParseSuit(wishTok)
		if !wok {
			return proto.NewFault(proto.BadWish, "bad_wish")
		}
		wish = w
		wishGiven = true
	}

	if err := c.rooms.Play(r, s, card, wish, wishGiven); err != nil {
		return err.(*proto.Fault)
	}
	s.Send(proto.Format(proto.RESP, "PLAY", "ok", "1"))
	return nil
}

func (c *Coordinator) handleDraw(s *clientSlot, _ *proto.Message) *proto.Fault {
	if f := requireLoggedIn(s); f != nil {
		return f
	}
	r, ok := c.roomOf(s)
	if !ok {
		return proto.NewFault(proto.BadState, "not_in_room")
	}
	if err := c.rooms.Draw(r, s); err != nil {
		return err.(*proto.Fault)
	}
	s.Send(proto.Format(proto.RESP, "DRAW", "ok", "1"))
	return nil
}

func (c *Coordinator) handleLogout(s *clientSlot, _ *proto.Message) *proto.Fault {
	s.Send(proto.Format(proto.RESP, "LOGOUT", "ok", "1"))
	if s.roomID != -1 {
		if r, ok := c.rooms.RoomByID(s.roomID); ok {
			c.rooms.Leave(r, s)
		}
	}
	if s.conn != nil {
		s.conn.Close()
	}
	delete(c.byConn, s.connID)
	s.reset()
	return nil
}

func (c *Coordinator) handlePing(s *clientSlot, _ *proto.Message) *proto.Fault {
	s.online = true
	s.lastSeen = time.Now()
	s.Send(proto.Format(proto.RESP, "PONG"))
	return nil
}

func (c *Coordinator) roomOf(s *clientSlot) (*room.Room, bool) {
	if s.roomID == -1 {
		return nil, false
	}
	return c.rooms.RoomByID(s.roomID)
}

func (c *Coordinator) notifyRoomOnline(s *clientSlot) {
	if r, ok := c.roomOf(s); ok {
		c.rooms.NotifyOnline(r)
	}
}

// tick drives spec §4.4's idle/offline timers and, via room.Manager.Tick,
// §4.3's pause-timeout abort. room.Manager.Tick runs first, before the
// per-client offline reap below: both timers share the same 120s
// constant and a client's lastSeen never advances past the moment it
// went offline, so an offline reap that ran first would always remove a
// mid-game player (and re-evaluate anyOffline for whoever's left) before
// the room's own pause timeout ever got to fire its GAME_ABORT
// reason=reconnect_timeout. Running the room-level abort first means the
// room is back in LOBBY by the time its offline player is reaped, so the
// reap is then just an ordinary lobby departure.
func (c *Coordinator) tick(now time.Time) {
	c.rooms.Tick(now)
	for _, s := range c.slots {
		switch {
		case s.state == slotConnected && s.online && now.Sub(s.lastSeen) > IdleTimeout:
			s.online = false
			if s.conn != nil {
				s.conn.Close()
				s.conn = nil
			}
			delete(c.byConn, s.connID)
			if r, ok := c.roomOf(s); ok {
				r.Broadcast(proto.Format(proto.EVT, "PLAYER_OFFLINE", "nick", s.nick))
				c.rooms.NotifyOnline(r)
			}
		case s.state == slotConnected && !s.online && now.Sub(s.lastSeen) > OfflineTimeout:
			if s.roomID != -1 {
				if r, ok := c.rooms.RoomByID(s.roomID); ok {
					c.rooms.Leave(r, s)
				}
			}
			s.reset()
		}
	}
}
