// Package peer runs one overlay participant: it serves inbound messages,
// searches the overlay for other peers and originates requests to them.
package peer

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/udit2303/p2p-overlay/pkg/messages"
	"github.com/udit2303/p2p-overlay/pkg/metrics"
	"github.com/udit2303/p2p-overlay/pkg/routing"
	"github.com/udit2303/p2p-overlay/pkg/util"
	"github.com/udit2303/p2p-overlay/pkg/wire"
)

const (
	DefaultTTL           = 5
	DefaultAcceptTimeout = 2 * time.Second
	DefaultDialTimeout   = 5 * time.Second
	DefaultIdleTimeout   = 10 * time.Second
)

// Config holds the settings of one peer.
type Config struct {
	ID       string
	Host     string
	Port     int
	MaxPeers int
	// TTL is the forwarding depth of searches started by SendToPeer.
	TTL int
	// AcceptTimeout bounds how long the accept loop blocks before checking
	// for shutdown.
	AcceptTimeout time.Duration
	DialTimeout   time.Duration
	// IdleTimeout bounds how long an inbound connection may take to deliver
	// its message before the worker drops it.
	IdleTimeout time.Duration
	// MaxWorkers caps concurrent connection workers. Zero means no cap.
	MaxWorkers int64
}

func (c *Config) setDefaults() {
	if c.Host == "" {
		c.Host = util.LocalHost()
	}
	if c.AcceptTimeout <= 0 {
		c.AcceptTimeout = DefaultAcceptTimeout
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
}

func (c *Config) validate() error {
	switch {
	case c.ID == "":
		return errors.New("peer id is required")
	case c.MaxPeers < 1:
		return fmt.Errorf("max peers must be at least 1, got %d", c.MaxPeers)
	case c.TTL < 0:
		return fmt.Errorf("ttl must not be negative, got %d", c.TTL)
	case c.Port < 0 || c.Port > 65535:
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return nil
}

var _ messages.Env = (*Peer)(nil)

// Peer is one participant of the overlay.
type Peer struct {
	cfg      Config
	table    *routing.Table
	registry *messages.Registry
	router   routing.Policy
	log      *util.Logger

	admit *semaphore.Weighted

	mu       sync.Mutex
	listener *net.TCPListener
	port     int
	serving  chan struct{}

	shutdown atomic.Bool
	workers  sync.WaitGroup
}

// New creates a peer that dispatches inbound messages through registry and
// picks search hops with router.
func New(cfg Config, registry *messages.Registry, router routing.Policy, log *util.Logger) (*Peer, error) {
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if registry == nil || router == nil {
		return nil, errors.New("registry and router are required")
	}
	if log == nil {
		log = util.DefaultLogger()
	}

	p := &Peer{
		cfg:      cfg,
		table:    routing.NewTable(cfg.MaxPeers),
		registry: registry,
		router:   router,
		log:      log.With("peer", cfg.ID),
		port:     cfg.Port,
	}
	if cfg.MaxWorkers > 0 {
		p.admit = semaphore.NewWeighted(cfg.MaxWorkers)
	}
	return p, nil
}

func (p *Peer) ID() string {
	return p.cfg.ID
}

// Addr is where the peer listens. Once Listen has bound, the port is the
// actual one.
func (p *Peer) Addr() routing.Address {
	p.mu.Lock()
	defer p.mu.Unlock()
	return routing.Address{Host: p.cfg.Host, Port: p.port}
}

// Known returns the known peers in insertion order.
func (p *Peer) Known() []routing.Entry {
	return p.table.Entries()
}

// AddPeer records a neighbor. Known identifiers, the peer's own identifier
// and additions beyond capacity are ignored.
func (p *Peer) AddPeer(id, host string, port int) bool {
	if id == p.cfg.ID {
		return false
	}
	added := p.table.Add(id, routing.Address{Host: host, Port: port})
	if added {
		metrics.SetKnownPeers(p.cfg.ID, p.table.Len())
		p.log.Debug("Added peer", "id", id, "address", routing.Address{Host: host, Port: port})
	}
	return added
}

// SendToPeer delivers a message to target, locating it first unless it is
// the peer itself. With wait it collects every response until the remote end
// closes. Failures come back as a single ERRO message.
func (p *Peer) SendToPeer(target, msgType, payload string, wait bool) []wire.Message {
	log := p.log.WithRequestID(uuid.NewString()).With("target", target)

	addr := p.Addr()
	if target != p.cfg.ID {
		found, _, ok := p.findPeer(log, target, p.cfg.TTL, routing.NewDiscardSet())
		if !ok {
			log.Debug("Target not found", "ttl", p.cfg.TTL)
			return []wire.Message{{Type: messages.TypeError, Payload: "Unable to find " + target}}
		}
		addr = found
	}
	return p.exchange(log, target, addr, msgType, payload, wait)
}

// Request sends an operator message. Asynchronous types are wrapped with the
// peer's identity so the reply can find its way back and are not waited on.
func (p *Peer) Request(target, msgType, data string) ([]wire.Message, error) {
	d, err := p.registry.CheckInvocable(msgType)
	if err != nil {
		return nil, err
	}
	payload := data
	if d.Async {
		payload, err = messages.Encode(messages.AsyncRequest{Data: data, Sender: p.cfg.ID})
		if err != nil {
			return nil, err
		}
	}
	return p.SendToPeer(target, msgType, payload, !d.Async), nil
}

// exchange opens a connection to addr, sends one message and, with wait,
// reads responses until end of stream.
func (p *Peer) exchange(log *util.Logger, peerID string, addr routing.Address, msgType, payload string, wait bool) []wire.Message {
	log = log.With("to", peerID, "address", addr)
	log.Debug("Sending message", "type", msgType)

	offline := []wire.Message{{Type: messages.TypeError, Payload: fmt.Sprintf("Peer %s is offline", peerID)}}
	conn, err := wire.Dial(addr.Host, addr.Port, p.cfg.DialTimeout)
	if err != nil {
		log.Debug("Peer unreachable", "error", err)
		return offline
	}
	defer conn.Close()

	if err := conn.Send(msgType, payload); err != nil {
		log.Debug("Failed to send message", "type", msgType, "error", err)
		return offline
	}
	metrics.IncSent(msgType)

	var responses []wire.Message
	if wait {
		for {
			msg, ok := conn.Receive()
			if !ok {
				break
			}
			log.Debug("Received response", "type", msg.Type, "payload", msg.Payload)
			responses = append(responses, msg)
		}
	}
	return responses
}
