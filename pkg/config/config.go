package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/udit2303/p2p-overlay/pkg/peer"
	"github.com/udit2303/p2p-overlay/pkg/routing"
)

var ErrInvalidSeed = errors.New("invalid seed peer")

// Seed is a peer to add to the known-peers table at startup.
type Seed struct {
	ID   string `json:"id"`
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Duration is a time.Duration that reads "2s" style strings from JSON.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Config is everything one peer process needs.
type Config struct {
	ID            string   `json:"id"`
	Host          string   `json:"host"`
	Port          int      `json:"port"`
	MaxPeers      int      `json:"max_peers"`
	TTL           int      `json:"ttl"`
	AcceptTimeout Duration `json:"accept_timeout"`
	DialTimeout   Duration `json:"dial_timeout"`
	IdleTimeout   Duration `json:"idle_timeout"`
	MaxWorkers    int64    `json:"max_workers"`
	AsyncDelay    Duration `json:"async_delay"`
	Router        string   `json:"router"`
	Verbose       bool     `json:"verbose"`
	MDNS          bool     `json:"mdns"`
	Network       string   `json:"network"`
	STUN          bool     `json:"stun"`
	Peers         []Seed   `json:"peers"`
}

// Default returns the settings used when neither file nor flag says otherwise.
func Default() Config {
	return Config{
		TTL:           peer.DefaultTTL,
		AcceptTimeout: Duration(peer.DefaultAcceptTimeout),
		DialTimeout:   Duration(peer.DefaultDialTimeout),
		IdleTimeout:   Duration(peer.DefaultIdleTimeout),
		AsyncDelay:    Duration(3 * time.Second),
		Router:        "distance",
		Network:       "p2p-overlay",
	}
}

// Load reads a JSON config file on top of the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	contents, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := json.Unmarshal(contents, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse builds the configuration from command-line arguments. A -config file
// is loaded first and flags that are set explicitly override it.
func Parse(fs *flag.FlagSet, args []string) (Config, error) {
	def := Default()
	path := fs.String("config", "", "JSON config file")
	id := fs.String("id", "", "Peer id. Format is 'p65'.")
	host := fs.String("host", "", "Host to listen on (default: first local IPv4)")
	port := fs.Int("port", 0, "Server port")
	maxPeers := fs.Int("maxpeers", 0, "Max number of peers")
	peers := fs.String("peers", "", "Comma separated peers. E.g: p01:192.168.1.102:5001,p02:192.168.1.102:5002")
	ttl := fs.Int("ttl", def.TTL, "How deep the finding algorithm goes")
	timeout := fs.Duration("timeout", time.Duration(def.AcceptTimeout), "Accept timeout of the server loop")
	dialTimeout := fs.Duration("dial-timeout", time.Duration(def.DialTimeout), "Timeout for outbound connections")
	idleTimeout := fs.Duration("idle-timeout", time.Duration(def.IdleTimeout), "How long an inbound connection may stay silent")
	workers := fs.Int64("workers", 0, "Max concurrent connection workers (0 = unbounded)")
	asyncDelay := fs.Duration("async-delay", time.Duration(def.AsyncDelay), "Processing delay of asynchronous requests")
	router := fs.String("router", def.Router, "Routing policy: distance or simple")
	verbose := fs.Bool("verbose", false, "Debug mode")
	mdns := fs.Bool("mdns", false, "Announce and discover peers on the local network")
	network := fs.String("network", def.Network, "Overlay name used for local discovery")
	stun := fs.Bool("stun", false, "Report the public address seen by a STUN server")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := def
	if *path != "" {
		var err error
		if cfg, err = Load(*path); err != nil {
			return Config{}, err
		}
	}

	var seedErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "id":
			cfg.ID = *id
		case "host":
			cfg.Host = *host
		case "port":
			cfg.Port = *port
		case "maxpeers":
			cfg.MaxPeers = *maxPeers
		case "peers":
			cfg.Peers, seedErr = ParseSeeds(*peers)
		case "ttl":
			cfg.TTL = *ttl
		case "timeout":
			cfg.AcceptTimeout = Duration(*timeout)
		case "dial-timeout":
			cfg.DialTimeout = Duration(*dialTimeout)
		case "idle-timeout":
			cfg.IdleTimeout = Duration(*idleTimeout)
		case "workers":
			cfg.MaxWorkers = *workers
		case "async-delay":
			cfg.AsyncDelay = Duration(*asyncDelay)
		case "router":
			cfg.Router = *router
		case "verbose":
			cfg.Verbose = *verbose
		case "mdns":
			cfg.MDNS = *mdns
		case "network":
			cfg.Network = *network
		case "stun":
			cfg.STUN = *stun
		}
	})
	if seedErr != nil {
		return Config{}, seedErr
	}
	return cfg, cfg.Validate()
}

// Validate reports the first setting a peer cannot start with.
func (c Config) Validate() error {
	switch {
	case c.ID == "":
		return errors.New("peer id is required")
	case c.Port < 1 || c.Port > 65535:
		return fmt.Errorf("invalid port %d", c.Port)
	case c.MaxPeers < 1:
		return fmt.Errorf("max peers must be at least 1, got %d", c.MaxPeers)
	case c.TTL < 0:
		return fmt.Errorf("ttl must not be negative, got %d", c.TTL)
	}
	if _, err := routing.ByName(c.Router); err != nil {
		return err
	}
	return nil
}

// Peer converts the settings the engine needs.
func (c Config) Peer() peer.Config {
	return peer.Config{
		ID:            c.ID,
		Host:          c.Host,
		Port:          c.Port,
		MaxPeers:      c.MaxPeers,
		TTL:           c.TTL,
		AcceptTimeout: time.Duration(c.AcceptTimeout),
		DialTimeout:   time.Duration(c.DialTimeout),
		IdleTimeout:   time.Duration(c.IdleTimeout),
		MaxWorkers:    c.MaxWorkers,
	}
}

// ParseSeeds reads "id:host:port" entries separated by commas.
func ParseSeeds(list string) ([]Seed, error) {
	var seeds []Seed
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.Split(item, ":")
		if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("%w: %q, expected id:host:port", ErrInvalidSeed, item)
		}
		port, err := strconv.Atoi(parts[2])
		if err != nil || port < 1 || port > 65535 {
			return nil, fmt.Errorf("%w: %q has a bad port", ErrInvalidSeed, item)
		}
		seeds = append(seeds, Seed{ID: parts[0], Host: parts[1], Port: port})
	}
	return seeds, nil
}
