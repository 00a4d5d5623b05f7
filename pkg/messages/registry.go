// Package messages defines the message types a peer understands and the
// handlers bound to them.
package messages

import (
	"errors"
	"fmt"

	"github.com/udit2303/p2p-overlay/pkg/routing"
	"github.com/udit2303/p2p-overlay/pkg/wire"
)

// Message type codes.
const (
	TypePing       = "PING"
	TypeEcho       = "ECHO"
	TypeFind       = "FIND"
	TypeAsync      = "ASYN"
	TypeAsyncReply = "ARES"
	TypeResponse   = "RESP"
	TypeError      = "ERRO"
)

// Pong is the payload of a positive PING reply.
const Pong = "PONG"

var (
	ErrUnknownType  = errors.New("unknown message type")
	ErrNotInvocable = errors.New("message type cannot be sent by a user")
)

// Env is the part of a peer a handler may call back into.
type Env interface {
	// ID is the identity of the peer running the handler.
	ID() string
	// FindPeer searches the overlay for target.
	FindPeer(target string, ttl int, discarded routing.DiscardSet) (routing.Address, routing.DiscardSet, bool)
	// SendToPeer originates a new message to target.
	SendToPeer(target, msgType, payload string, wait bool) []wire.Message
}

// Handler serves one inbound message. conn is closed by the caller once
// Handle returns.
type Handler interface {
	Handle(conn *wire.Conn, payload string, env Env) error
}

type HandlerFunc func(conn *wire.Conn, payload string, env Env) error

func (f HandlerFunc) Handle(conn *wire.Conn, payload string, env Env) error {
	return f(conn, payload, env)
}

// Descriptor is the static metadata of one message type.
type Descriptor struct {
	Type string
	// Invocable types may be sent by an operator; the rest only appear as
	// part of the protocol.
	Invocable bool
	// Async types are answered later over a new connection from the
	// receiving peer, never on the request's own connection.
	Async   bool
	Help    string
	Handler Handler
}

// Registry maps type codes to descriptors. It is immutable once built.
type Registry struct {
	byType map[string]Descriptor
	order  []string
}

// NewRegistry builds a registry from descs. It panics on a type code that is
// not wire.TypeLen bytes, a duplicate code or a missing handler.
func NewRegistry(descs ...Descriptor) *Registry {
	r := &Registry{byType: make(map[string]Descriptor, len(descs))}
	for _, d := range descs {
		if len(d.Type) != wire.TypeLen {
			panic(fmt.Sprintf("messages: type %q is not %d bytes", d.Type, wire.TypeLen))
		}
		if _, dup := r.byType[d.Type]; dup {
			panic(fmt.Sprintf("messages: type %q registered twice", d.Type))
		}
		if d.Handler == nil {
			panic(fmt.Sprintf("messages: type %q has no handler", d.Type))
		}
		r.byType[d.Type] = d
		r.order = append(r.order, d.Type)
	}
	return r
}

func (r *Registry) Lookup(msgType string) (Descriptor, bool) {
	d, ok := r.byType[msgType]
	return d, ok
}

// Invocable lists the operator-facing types in registration order.
func (r *Registry) Invocable() []Descriptor {
	var out []Descriptor
	for _, t := range r.order {
		if d := r.byType[t]; d.Invocable {
			out = append(out, d)
		}
	}
	return out
}

// CheckInvocable reports whether an operator may send msgType.
func (r *Registry) CheckInvocable(msgType string) (Descriptor, error) {
	d, ok := r.byType[msgType]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrUnknownType, msgType)
	}
	if !d.Invocable {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrNotInvocable, msgType)
	}
	return d, nil
}
