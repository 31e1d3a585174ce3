// Operator console
//
// This file is part of go-sedma.
//
// Reads stdin on its own goroutine and only ever signals shutdown; it
// never touches coordinator or room state directly, the same split spec
// §9 draws for signal handling ("only a volatile flag is touched; do all
// teardown on the main loop").

package transport

import (
	"bufio"
	"os"
	"strings"
)

// WatchConsole reads lines from stdin until it sees "quit", "exit", "q",
// or EOF, then closes done. Callers select on done to begin shutdown.
func WatchConsole(done chan<- struct{}) {
	defer close(done)

	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		switch strings.TrimSpace(sc.Text()) {
		case "quit", "exit", "q":
			return
		}
	}
	// EOF (or a scan error) on stdin also requests shutdown.
}
