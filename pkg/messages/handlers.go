package messages

import (
	"time"

	"github.com/udit2303/p2p-overlay/pkg/routing"
	"github.com/udit2303/p2p-overlay/pkg/wire"
)

// ReplyFunc receives the payload of an asynchronous reply and the address it
// came from.
type ReplyFunc func(remote, payload string)

// Ping answers a liveness probe.
func Ping() Handler {
	return HandlerFunc(func(conn *wire.Conn, _ string, _ Env) error {
		return conn.Send(TypeResponse, Pong)
	})
}

// Echo sends the payload back unchanged.
func Echo() Handler {
	return HandlerFunc(func(conn *wire.Conn, payload string, _ Env) error {
		return conn.Send(TypeResponse, payload)
	})
}

// Find continues a search on behalf of the requesting peer and answers with
// either the location of the target or the discard set it ended with,
// including the local peer.
func Find() Handler {
	return HandlerFunc(func(conn *wire.Conn, payload string, env Env) error {
		var req FindRequest
		if err := Decode(payload, &req); err != nil {
			_ = conn.Send(TypeError, err.Error())
			return err
		}

		addr, discarded, found := env.FindPeer(req.PeerID, req.TTL, routing.NewDiscardSet(req.Discarded...))
		resp := FindResponse{PeerID: req.PeerID}
		if found {
			resp.Host, resp.Port = addr.Host, addr.Port
		} else {
			discarded.Add(env.ID())
			resp.Discarded = discarded.Slice()
		}

		out, err := Encode(resp)
		if err != nil {
			return err
		}
		return conn.Send(TypeResponse, out)
	})
}

// AsyncEcho acknowledges an ASYN request by returning at once and, after
// delay, sends the request's data back to its sender as ARES on a connection
// of its own.
func AsyncEcho(delay time.Duration) Handler {
	return HandlerFunc(func(_ *wire.Conn, payload string, env Env) error {
		var req AsyncRequest
		if err := Decode(payload, &req); err != nil {
			return err
		}
		go func() {
			time.Sleep(delay)
			env.SendToPeer(req.Sender, TypeAsyncReply, req.Data, false)
		}()
		return nil
	})
}

// AsyncReply hands ARES payloads to fn.
func AsyncReply(fn ReplyFunc) Handler {
	return HandlerFunc(func(conn *wire.Conn, payload string, _ Env) error {
		if fn != nil {
			fn(conn.RemoteAddr(), payload)
		}
		return nil
	})
}

// Defaults builds the registry of the five core message types.
func Defaults(asyncDelay time.Duration, onReply ReplyFunc) *Registry {
	return NewRegistry(
		Descriptor{Type: TypePing, Invocable: true, Help: "Pings another peer", Handler: Ping()},
		Descriptor{Type: TypeEcho, Invocable: true, Help: "Echoes a message", Handler: Echo()},
		Descriptor{Type: TypeFind, Help: "Finds a peer on the P2P network", Handler: Find()},
		Descriptor{Type: TypeAsync, Invocable: true, Async: true, Help: "Requests an echo message", Handler: AsyncEcho(asyncDelay)},
		Descriptor{Type: TypeAsyncReply, Help: "Handles the echo response", Handler: AsyncReply(onReply)},
	)
}
