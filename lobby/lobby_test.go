package lobby

import (
	"strings"
	"testing"
	"time"

	"go-sedma/room"
)

type fakeConn struct {
	lines  []string
	closed bool
}

func (f *fakeConn) Send(line string) { f.lines = append(f.lines, line) }
func (f *fakeConn) Close()           { f.closed = true }

func (f *fakeConn) last() string {
	if len(f.lines) == 0 {
		return ""
	}
	return f.lines[len(f.lines)-1]
}

func newTestCoordinator() *Coordinator {
	return NewCoordinator(8, room.NewManager(4))
}

func connectAndLogin(t *testing.T, c *Coordinator, connID int, nick string) *fakeConn {
	t.Helper()
	conn := &fakeConn{}
	c.dispatch(Command{Kind: CmdConnect, ConnID: connID, Conn: conn})
	c.dispatch(Command{Kind: CmdLine, ConnID: connID, Line: "REQ LOGIN nick=" + nick})
	if !strings.Contains(conn.last(), "RESP LOGIN ok=1") {
		t.Fatalf("login failed for %s: %q", nick, conn.last())
	}
	return conn
}

func TestLoginAssignsSession(t *testing.T) {
	c := newTestCoordinator()
	conn := connectAndLogin(t, c, 1, "alice")
	if !strings.Contains(conn.last(), "session=") {
		t.Errorf("LOGIN response missing session token: %q", conn.last())
	}
}

func TestLoginRejectsDuplicateOnlineNick(t *testing.T) {
	c := newTestCoordinator()
	connectAndLogin(t, c, 1, "alice")

	conn2 := &fakeConn{}
	c.dispatch(Command{Kind: CmdConnect, ConnID: 2, Conn: conn2})
	c.dispatch(Command{Kind: CmdLine, ConnID: 2, Line: "REQ LOGIN nick=alice"})
	if !strings.Contains(conn2.last(), "NICK_TAKEN") || !strings.Contains(conn2.last(), "already_online") {
		t.Errorf("expected NICK_TAKEN/already_online, got %q", conn2.last())
	}
}

func TestResumeAdoptsOfflineSlot(t *testing.T) {
	c := newTestCoordinator()
	conn := connectAndLogin(t, c, 1, "alice")

	// extract session token
	var session string
	for _, l := range conn.lines {
		if idx := strings.Index(l, "session="); idx != -1 {
			session = l[idx+len("session="):]
		}
	}
	if session == "" {
		t.Fatal("no session token captured")
	}

	c.dispatch(Command{Kind: CmdDisconnect, ConnID: 1})

	conn2 := &fakeConn{}
	c.dispatch(Command{Kind: CmdConnect, ConnID: 2, Conn: conn2})
	c.dispatch(Command{Kind: CmdLine, ConnID: 2, Line: "REQ RESUME nick=alice session=" + session})

	if !containsAny(conn2.lines, "RESP RESUME ok=1") {
		t.Errorf("resume did not succeed: %v", conn2.lines)
	}
}

func containsAny(lines []string, want string) bool {
	for _, l := range lines {
		if l == want {
			return true
		}
	}
	return false
}

func TestResumeRejectsWrongSession(t *testing.T) {
	c := newTestCoordinator()
	connectAndLogin(t, c, 1, "alice")
	c.dispatch(Command{Kind: CmdDisconnect, ConnID: 1})

	conn2 := &fakeConn{}
	c.dispatch(Command{Kind: CmdConnect, ConnID: 2, Conn: conn2})
	c.dispatch(Command{Kind: CmdLine, ConnID: 2, Line: "REQ RESUME nick=alice session=deadbeef"})
	if !containsAny(conn2.lines, "ERR RESUME code=BAD_SESSION msg=no_such_session") {
		t.Errorf("expected BAD_SESSION, got %v", conn2.lines)
	}
}

func TestThreeStrikesDoesNotDropSlot(t *testing.T) {
	c := newTestCoordinator()
	conn := &fakeConn{}
	c.dispatch(Command{Kind: CmdConnect, ConnID: 1, Conn: conn})

	for i := 0; i < 3; i++ {
		c.dispatch(Command{Kind: CmdLine, ConnID: 1, Line: "garbage"})
	}
	if conn.closed {
		t.Error("slot dropped after only 3 strikes")
	}
}

func TestFourthStrikeDropsSlot(t *testing.T) {
	c := newTestCoordinator()
	conn := &fakeConn{}
	c.dispatch(Command{Kind: CmdConnect, ConnID: 1, Conn: conn})

	for i := 0; i < 4; i++ {
		c.dispatch(Command{Kind: CmdLine, ConnID: 1, Line: "garbage"})
	}
	if !conn.closed {
		t.Error("expected slot to be dropped (conn closed) after a 4th strike")
	}
}

func TestTwoStrikesDoesNotDrop(t *testing.T) {
	c := newTestCoordinator()
	conn := &fakeConn{}
	c.dispatch(Command{Kind: CmdConnect, ConnID: 1, Conn: conn})

	c.dispatch(Command{Kind: CmdLine, ConnID: 1, Line: "garbage"})
	c.dispatch(Command{Kind: CmdLine, ConnID: 1, Line: "garbage"})
	if conn.closed {
		t.Error("slot dropped after only 2 strikes")
	}
}

func TestCreateRoomRejectsBadSize(t *testing.T) {
	c := newTestCoordinator()
	conn := connectAndLogin(t, c, 1, "alice")
	c.dispatch(Command{Kind: CmdLine, ConnID: 1, Line: "REQ CREATE_ROOM name=x size=1"})
	if !strings.Contains(conn.last(), "INVALID_VALUE") {
		t.Errorf("expected INVALID_VALUE for size=1, got %q", conn.last())
	}
	c.dispatch(Command{Kind: CmdLine, ConnID: 1, Line: "REQ CREATE_ROOM name=x size=5"})
	if !strings.Contains(conn.last(), "INVALID_VALUE") {
		t.Errorf("expected INVALID_VALUE for size=5, got %q", conn.last())
	}
}

func TestFullGameFlowTwoPlayers(t *testing.T) {
	c := newTestCoordinator()
	host := connectAndLogin(t, c, 1, "host")
	guest := connectAndLogin(t, c, 2, "guest")

	c.dispatch(Command{Kind: CmdLine, ConnID: 1, Line: "REQ CREATE_ROOM name=table size=2"})
	if !strings.Contains(host.last(), "RESP CREATE_ROOM ok=1") {
		t.Fatalf("create room failed: %q", host.last())
	}
	roomID := host.last()[strings.Index(host.last(), "room=")+len("room="):]

	c.dispatch(Command{Kind: CmdLine, ConnID: 2, Line: "REQ JOIN_ROOM room=" + roomID})
	if !containsSubstr(guest.lines, "RESP JOIN_ROOM ok=1") {
		t.Fatalf("join room failed: %v", guest.lines)
	}

	c.dispatch(Command{Kind: CmdLine, ConnID: 1, Line: "REQ START_GAME"})
	if !strings.Contains(host.last(), "RESP START_GAME ok=1") {
		t.Fatalf("start game failed: %v", host.lines)
	}
	if !containsSubstr(host.lines, "EVT GAME_START") {
		t.Errorf("expected GAME_START broadcast, got %v", host.lines)
	}
}

func containsSubstr(lines []string, sub string) bool {
	for _, l := range lines {
		if strings.Contains(l, sub) {
			return true
		}
	}
	return false
}

func TestIdleTimeoutDropsOnlineFlag(t *testing.T) {
	c := newTestCoordinator()
	conn := connectAndLogin(t, c, 1, "alice")

	s := c.byConn[1]
	s.lastSeen = time.Now().Add(-1 * time.Hour)

	c.tick(time.Now())
	if s.online {
		t.Error("expected slot to go offline after idle timeout")
	}
	if !conn.closed {
		t.Error("expected connection to be closed on idle timeout")
	}
}

func TestOfflineReapFreesSlot(t *testing.T) {
	c := newTestCoordinator()
	connectAndLogin(t, c, 1, "alice")
	c.dispatch(Command{Kind: CmdDisconnect, ConnID: 1})

	s := c.findByNick("alice")
	if s == nil {
		t.Fatal("expected slot still allocated after disconnect")
	}
	s.lastSeen = time.Now().Add(-1 * time.Hour)

	c.tick(time.Now())
	if s.state != slotEmpty {
		t.Error("expected slot to be freed after offline reap")
	}
}

func TestOfflineTimeoutAbortsThreePlayerGameInsteadOfResuming(t *testing.T) {
	c := newTestCoordinator()
	host := connectAndLogin(t, c, 1, "host")
	connectAndLogin(t, c, 2, "p2")
	connectAndLogin(t, c, 3, "p3")

	c.dispatch(Command{Kind: CmdLine, ConnID: 1, Line: "REQ CREATE_ROOM name=table size=3"})
	roomID := host.last()[strings.Index(host.last(), "room=")+len("room="):]
	c.dispatch(Command{Kind: CmdLine, ConnID: 2, Line: "REQ JOIN_ROOM room=" + roomID})
	c.dispatch(Command{Kind: CmdLine, ConnID: 3, Line: "REQ JOIN_ROOM room=" + roomID})
	c.dispatch(Command{Kind: CmdLine, ConnID: 1, Line: "REQ START_GAME"})
	if !strings.Contains(host.last(), "RESP START_GAME ok=1") {
		t.Fatalf("start game failed: %v", host.lines)
	}

	// The middle player drops; the room pauses waiting for a reconnect.
	c.dispatch(Command{Kind: CmdDisconnect, ConnID: 2})
	if !containsSubstr(host.lines, "EVT GAME_PAUSED") {
		t.Fatalf("expected GAME_PAUSED broadcast, got %v", host.lines)
	}

	// The reconnect window expires without p2 coming back.
	future := time.Now().Add(room.PauseTimeout + time.Second)
	c.tick(future)

	if containsSubstr(host.lines, "GAME_RESUMED") {
		t.Errorf("game should not resume once the offline player's reconnect window has expired, got %v", host.lines)
	}
	if !containsSubstr(host.lines, "GAME_ABORT") || !containsSubstr(host.lines, "reconnect_timeout") {
		t.Errorf("expected GAME_ABORT reason=reconnect_timeout, got %v", host.lines)
	}
}
