package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/udit2303/p2p-overlay/pkg/config"
	"github.com/udit2303/p2p-overlay/pkg/discovery"
	"github.com/udit2303/p2p-overlay/pkg/messages"
	"github.com/udit2303/p2p-overlay/pkg/peer"
	"github.com/udit2303/p2p-overlay/pkg/routing"
	"github.com/udit2303/p2p-overlay/pkg/util"
	"github.com/udit2303/p2p-overlay/pkg/wire"
)

var (
	log = util.DefaultLogger()
)

// requester is the part of a peer the prompt drives.
type requester interface {
	Request(target, msgType, data string) ([]wire.Message, error)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Parse(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatal("Invalid configuration", "error", err)
	}
	if cfg.Verbose {
		log = util.NewLogger(os.Stdout, util.DebugLevel)
	}
	log = log.With("node", cfg.ID, "port", cfg.Port)

	router, err := routing.ByName(cfg.Router)
	if err != nil {
		log.Fatal("Invalid router", "error", err)
	}
	registry := messages.Defaults(time.Duration(cfg.AsyncDelay), func(remote, payload string) {
		fmt.Printf("[%s] -> %s\n", remote, payload)
	})

	p, err := peer.New(cfg.Peer(), registry, router, log)
	if err != nil {
		log.Fatal("Failed to create peer", "error", err)
	}
	for _, s := range cfg.Peers {
		if !p.AddPeer(s.ID, s.Host, s.Port) {
			log.Warn("Seed peer not added", "id", s.ID)
		}
	}

	if cfg.STUN {
		if ip, port, err := util.GetPublicIP(util.DefaultSTUNServer, 3*time.Second); err == nil {
			log.Info("Public internet address (via STUN)", "ip", ip, "port", port)
		} else {
			log.Warn("Unable to determine public IP (STUN)", "error", err)
		}
	}

	if err := p.Start(ctx); err != nil {
		log.Fatal("Failed to start peer", "error", err)
	}
	// Signals stop being caught before the wait, so a second Ctrl+C kills
	// the process.
	defer func() {
		stop()
		p.Shutdown()
	}()
	addr := p.Addr()
	fmt.Printf("Peer %s started\n", addr)

	if cfg.MDNS {
		discover(ctx, p, cfg.Network, addr.Port)
	}

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	menu(os.Stdout, registry)
	for {
		select {
		case <-ctx.Done():
			log.Info("Shutting down...")
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if handleLine(os.Stdout, p, line) {
				menu(os.Stdout, registry)
			}
		}
	}
}

// discover announces the peer on the local network and adds whoever else
// is already announced there.
func discover(ctx context.Context, p *peer.Peer, network string, port int) {
	if err := discovery.Announce(ctx, network, p.ID(), port); err != nil {
		log.Warn("Service announcement failed", "error", err)
	}
	found, err := discovery.Browse(ctx, network, 3*time.Second)
	if err != nil {
		log.Warn("Error finding peers", "error", err)
		return
	}
	for _, d := range found {
		if p.AddPeer(d.ID, d.IP, d.Port) {
			log.Info("Discovered peer", "id", d.ID, "address", fmt.Sprintf("%s:%d", d.IP, d.Port))
		}
	}
}

func menu(w io.Writer, registry *messages.Registry) {
	fmt.Fprintln(w, "--------------------------------------")
	fmt.Fprintln(w, "Send a message to a peer")
	fmt.Fprintln(w, "usage: MSGTYPE PEER [MSGDATA]")
	fmt.Fprintln(w, "E.g: ECHO p01 Hello World!")
	fmt.Fprintln(w, "Available message types:")
	for _, d := range registry.Invocable() {
		fmt.Fprintf(w, "- %s: %s\n", d.Type, d.Help)
	}
	fmt.Fprintln(w, "Exit: Ctrl+C")
	fmt.Fprintln(w, "--------------------------------------")
}

// handleLine runs one "MSGTYPE PEER [MSGDATA]" command and prints what came
// back. It reports whether a request was sent.
func handleLine(w io.Writer, r requester, line string) bool {
	fields := strings.SplitN(strings.TrimSpace(line), " ", 3)
	if len(fields) < 2 {
		fmt.Fprintln(w, "usage: MSGTYPE PEER [MSGDATA]")
		return false
	}
	msgType, target := strings.ToUpper(fields[0]), fields[1]
	var data string
	if len(fields) == 3 {
		data = fields[2]
	}

	res, err := r.Request(target, msgType, data)
	if errors.Is(err, messages.ErrUnknownType) || errors.Is(err, messages.ErrNotInvocable) {
		fmt.Fprintln(w, "Wrong message type. Please try again.")
		return false
	}
	if err != nil {
		fmt.Fprintf(w, "Request failed: %v\n", err)
		return false
	}

	for _, m := range res {
		switch m.Type {
		case messages.TypeError:
			fmt.Fprintln(w, m.Payload)
			return true
		case messages.TypeResponse:
			fmt.Fprintf(w, "[%s] -> %s\n", target, m.Payload)
		default:
			fmt.Fprintln(w, "Unable to process response.")
		}
	}
	return true
}
