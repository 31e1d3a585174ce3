// Protocol codec
//
// This file is part of go-sedma.
//
// Parses one already-framed line ("TYPE CMD [key=value ...]") into a
// structured Message. Framing (finding the line in the byte stream,
// rejecting ones that are too long) is the transport's job, not this
// package's — see go-sedma/transport.

package proto

import (
	"errors"
	"strings"
)

// Type is one of the four message classes the wire protocol recognises.
type Type uint8

const (
	REQ Type = iota
	RESP
	EVT
	ERR
)

func (t Type) String() string {
	switch t {
	case REQ:
		return "REQ"
	case RESP:
		return "RESP"
	case EVT:
		return "EVT"
	case ERR:
		return "ERR"
	default:
		return "?"
	}
}

// ParseType recognises one of the four type tokens.
func ParseType(s string) (Type, bool) {
	switch s {
	case "REQ":
		return REQ, true
	case "RESP":
		return RESP, true
	case "EVT":
		return EVT, true
	case "ERR":
		return ERR, true
	default:
		return 0, false
	}
}

// Protocol caps, kept as hard limits per the spec's fixed-capacity design:
// these are wire caps, not incidental buffer sizes.
const (
	MaxCmdLen   = 31
	MaxKeyLen   = 31
	MaxValueLen = 127
	MaxPairs    = 32
)

// ErrBadFormat is returned when a line has no recognisable type or
// command token, or the type token is not one of REQ/RESP/EVT/ERR.
var ErrBadFormat = errors.New("PROTO_BAD")

// Message is one parsed protocol line.
type Message struct {
	Type Type
	Cmd  string
	kv   []kvPair
}

type kvPair struct {
	key, val string
}

// Get returns the value of the first key=value pair matching key, the way
// proto_get does, reporting whether a match was found.
func (m *Message) Get(key string) (string, bool) {
	for _, p := range m.kv {
		if p.key == key {
			return p.val, true
		}
	}
	return "", false
}

// Parse tokenizes raw into a Message. A line with only a type and a
// command and no key=value pairs is valid.
func Parse(raw string) (*Message, error) {
	fields := strings.Fields(raw)
	if len(fields) < 2 {
		return nil, ErrBadFormat
	}

	typ, ok := ParseType(fields[0])
	if !ok {
		return nil, ErrBadFormat
	}

	cmd := fields[1]
	if len(cmd) > MaxCmdLen {
		cmd = cmd[:MaxCmdLen]
	}

	msg := &Message{Type: typ, Cmd: cmd}
	for _, tok := range fields[2:] {
		if len(msg.kv) >= MaxPairs {
			break
		}

		key, val, found := strings.Cut(tok, "=")
		if !found {
			continue
		}
		if len(key) == 0 || len(key) >= MaxKeyLen+1 {
			continue
		}
		if len(val) > MaxValueLen {
			val = val[:MaxValueLen]
		}
		msg.kv = append(msg.kv, kvPair{key: key, val: val})
	}

	return msg, nil
}

// Format renders a message back into a wire line, used by the lobby and
// room packages to build RESP/EVT/ERR output without each caller hand
// building strings.
func Format(typ Type, cmd string, pairs ...string) string {
	var b strings.Builder
	b.WriteString(typ.String())
	b.WriteByte(' ')
	b.WriteString(cmd)
	for i := 0; i+1 < len(pairs); i += 2 {
		b.WriteByte(' ')
		b.WriteString(pairs[i])
		b.WriteByte('=')
		b.WriteString(pairs[i+1])
	}
	return b.String()
}
