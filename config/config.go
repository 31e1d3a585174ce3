// Configuration loading
//
// This file is part of go-sedma.
//
// Three-tier precedence, the way the teacher's cmd/conf.go layers CLI
// flags over a TOML-decoded struct over compiled-in defaults: defaults →
// config file → CLI flags (highest). The wire format here is spec §6's
// bespoke key=value/#/; dialect rather than TOML, so github.com/
// BurntSushi/toml (the teacher's library for this) can't be reused — see
// DESIGN.md.

package config

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Conf is the fully validated configuration record the rest of the
// server depends on; nothing downstream touches flags or file I/O.
type Conf struct {
	IP         string
	Port       int
	MaxClients int
	MaxRooms   int
	Debug      bool
	ConfigPath string
}

// Defaults, per spec §6.
func Defaults() Conf {
	return Conf{
		IP:         "0.0.0.0",
		Port:       7777,
		MaxClients: 128,
		MaxRooms:   32,
	}
}

// Caps enforced regardless of what the file or flags request, per spec
// §9's "fixed-capacity arrays... protocol caps, not incidental."
const (
	MaxClientsCap = 128
	MaxRoomsCap   = 64
)

// Load reads path (if it exists) and layers its key=value pairs over
// base. Unknown keys are ignored; # and ; start comments; blank lines
// are skipped.
func Load(path string, base Conf) (Conf, error) {
	c := base
	if path == "" {
		return c, nil
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return c, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" || strings.HasPrefix(raw, "#") || strings.HasPrefix(raw, ";") {
			continue
		}
		key, val, ok := strings.Cut(raw, "=")
		if !ok {
			return c, fmt.Errorf("%s:%d: expected key=value", path, line)
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)

		switch key {
		case "ip":
			c.IP = val
		case "port":
			n, err := strconv.Atoi(val)
			if err != nil {
				return c, fmt.Errorf("%s:%d: bad port %q", path, line, val)
			}
			c.Port = n
		case "max_clients":
			n, err := strconv.Atoi(val)
			if err != nil {
				return c, fmt.Errorf("%s:%d: bad max_clients %q", path, line, val)
			}
			c.MaxClients = n
		case "max_rooms":
			n, err := strconv.Atoi(val)
			if err != nil {
				return c, fmt.Errorf("%s:%d: bad max_rooms %q", path, line, val)
			}
			c.MaxRooms = n
		case "debug":
			c.Debug = val == "true" || val == "1"
		default:
			// unknown keys ignored, per spec §6
		}
	}
	if err := sc.Err(); err != nil {
		return c, err
	}

	return c, nil
}

// ParseFlags layers CLI flags over base, matching the teacher's
// flag.StringVar-over-defaults idiom (cmd/conf.go's init()), except it
// uses its own FlagSet instead of the global one so it stays callable
// (and testable) more than once per process.
func ParseFlags(args []string, base Conf) (Conf, error) {
	c := base
	fs := flag.NewFlagSet("sedma-server", flag.ContinueOnError)

	configPath := fs.String("c", c.ConfigPath, "path to configuration file")
	fs.StringVar(configPath, "config", c.ConfigPath, "path to configuration file")
	ip := fs.String("ip", c.IP, "address to listen on")
	port := fs.Int("port", c.Port, "port to listen on")
	maxClients := fs.Int("max-clients", c.MaxClients, "maximum concurrent clients")
	maxRooms := fs.Int("max-rooms", c.MaxRooms, "maximum concurrent rooms")
	debug := fs.Bool("debug", c.Debug, "enable debug logging")

	if err := fs.Parse(args); err != nil {
		return c, err
	}

	c.ConfigPath = *configPath
	c.IP = *ip
	c.Port = *port
	c.MaxClients = *maxClients
	c.MaxRooms = *maxRooms
	c.Debug = *debug
	return c, nil
}

// Validate caps max_clients/max_rooms per spec §6 and rejects an
// obviously broken port.
func (c Conf) Validate() error {
	if c.MaxClients <= 0 || c.MaxClients > MaxClientsCap {
		return fmt.Errorf("max_clients must be in (0, %d]", MaxClientsCap)
	}
	if c.MaxRooms <= 0 || c.MaxRooms > MaxRoomsCap {
		return fmt.Errorf("max_rooms must be in (0, %d]", MaxRoomsCap)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be in (0, 65535]")
	}
	return nil
}
