// Entry point
//
// This file is part of go-sedma.

package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	sedma "go-sedma"
	"go-sedma/config"
	"go-sedma/lobby"
	"go-sedma/room"
	"go-sedma/transport"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run wires config → transport → lobby → room → engine, mirroring the
// teacher's cmd/server/main.go (conf.Open → proto.Prepare → sched →
// config.Start), and returns the process exit code spec §6 assigns:
// 0 clean, 1 listen failure, 2 invalid argument.
func run(args []string) int {
	cfg, err := config.ParseFlags(args, config.Defaults())
	if err == flag.ErrHelp {
		return 0
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	if cfg.ConfigPath != "" {
		cfg, err = config.Load(cfg.ConfigPath, cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		// CLI flags still win over the file, per spec §6.
		cfg, err = config.ParseFlags(args, cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	if cfg.Debug {
		sedma.Debug.SetOutput(os.Stderr)
	}

	rooms := room.NewManager(cfg.MaxRooms)
	coord := lobby.NewCoordinator(cfg.MaxClients, rooms)

	addr := fmt.Sprintf("%s:%d", cfg.IP, cfg.Port)
	tcp, err := transport.Listen(addr, coord)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	go coord.Run()

	serveErr := make(chan error, 1)
	go func() { serveErr <- tcp.Serve() }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	console := make(chan struct{})
	go transport.WatchConsole(console)

	select {
	case <-sig:
		sedma.Info.Println("caught interrupt")
	case <-console:
		sedma.Info.Println("console requested shutdown")
	case err := <-serveErr:
		sedma.Info.Println("listener stopped:", err)
	}

	tcp.Close()
	tcp.Wait()
	coord.Stop()
	return 0
}
