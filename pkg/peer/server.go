package peer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/udit2303/p2p-overlay/pkg/metrics"
	"github.com/udit2303/p2p-overlay/pkg/util"
	"github.com/udit2303/p2p-overlay/pkg/wire"
)

// Listen binds the peer's host and port, retrying briefly while the address
// is busy.
func (p *Peer) Listen(ctx context.Context) error {
	addr := net.JoinHostPort(p.cfg.Host, strconv.Itoa(p.cfg.Port))

	var ln net.Listener
	err := util.Retry(ctx, 3, 200*time.Millisecond, func() error {
		l, err := net.Listen("tcp", addr)
		if err != nil {
			return err
		}
		ln = l
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to start peer server: %w", err)
	}

	p.mu.Lock()
	p.listener = ln.(*net.TCPListener)
	p.port = p.listener.Addr().(*net.TCPAddr).Port
	p.mu.Unlock()

	p.log.Info("Peer server started", "address", p.Addr())
	return nil
}

// Serve runs the accept loop until ctx is done or Shutdown is called, then
// waits for in-flight workers. Each accepted connection is served by its own
// goroutine. The loop only checks for shutdown between accepts, so stopping
// takes up to the accept timeout.
func (p *Peer) Serve(ctx context.Context) error {
	ln, serving, err := p.beginServing()
	if err != nil {
		return err
	}
	p.acceptLoop(ctx, ln, serving)
	return nil
}

// Start binds and runs the accept loop in the background.
func (p *Peer) Start(ctx context.Context) error {
	if err := p.Listen(ctx); err != nil {
		return err
	}
	ln, serving, err := p.beginServing()
	if err != nil {
		return err
	}
	go p.acceptLoop(ctx, ln, serving)
	return nil
}

func (p *Peer) beginServing() (*net.TCPListener, chan struct{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listener == nil {
		return nil, nil, errors.New("peer is not listening")
	}
	if p.serving != nil {
		return nil, nil, errors.New("peer is already serving")
	}
	p.serving = make(chan struct{})
	return p.listener, p.serving, nil
}

func (p *Peer) acceptLoop(ctx context.Context, ln *net.TCPListener, serving chan struct{}) {
	defer close(serving)
	defer ln.Close()

	for !p.shutdown.Load() && ctx.Err() == nil {
		_ = ln.SetDeadline(time.Now().Add(p.cfg.AcceptTimeout))
		c, err := ln.Accept()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				break
			}
			p.log.Warn("Error accepting connection", "error", err)
			continue
		}

		if p.admit != nil {
			if err := p.admit.Acquire(ctx, 1); err != nil {
				_ = c.Close()
				break
			}
		}
		p.workers.Add(1)
		go p.handle(c)
	}

	p.workers.Wait()
	p.log.Info("Peer server stopped")
}

// Shutdown asks the accept loop to stop and waits until it has.
func (p *Peer) Shutdown() {
	p.shutdown.Store(true)
	p.mu.Lock()
	serving, ln := p.serving, p.listener
	p.mu.Unlock()
	if serving == nil {
		if ln != nil {
			_ = ln.Close()
		}
		return
	}
	<-serving
}

// handle serves exactly one message and closes the connection.
func (p *Peer) handle(c net.Conn) {
	defer p.workers.Done()
	if p.admit != nil {
		defer p.admit.Release(1)
	}
	defer metrics.WorkerStarted()()

	conn := wire.NewConn(c)
	defer conn.Close()
	log := p.log.With("remote", conn.RemoteAddr())

	_ = c.SetReadDeadline(time.Now().Add(p.cfg.IdleTimeout))
	msg, ok := conn.Receive()
	if !ok {
		log.Debug("Connection closed before a message arrived")
		return
	}
	_ = c.SetReadDeadline(time.Time{})
	metrics.IncReceived(msg.Type)
	log.Debug("Received message", "type", msg.Type, "payload", msg.Payload)

	d, ok := p.registry.Lookup(msg.Type)
	if !ok {
		log.Debug("Ignoring unknown message type", "type", msg.Type)
		return
	}
	if err := d.Handler.Handle(conn, msg.Payload, p); err != nil {
		log.Warn("Handler failed", "type", msg.Type, "error", err)
	}
}
