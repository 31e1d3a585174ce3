// Shared logging
//
// This file is part of go-sedma.

package sedma

import (
	"io"
	"log"
)

// Debug is silent by default; the operator enables it with -debug or the
// config file's debug=true.
var Debug = log.New(io.Discard, "[debug] ", log.Ltime|log.Lshortfile|log.Lmicroseconds)

// Info carries operational messages: accepted connections, room lifecycle,
// aborted games. Unlike Debug it is never discarded.
var Info = log.New(log.Writer(), "[sedma] ", log.Ltime)
