// Package wire frames typed messages over a stream socket.
//
// A frame is a 4 byte ASCII type code, a 4 byte big-endian payload length and
// the UTF-8 payload itself. A stream that ends before the first byte of a
// frame is the normal way a peer says it has nothing more to send.
package wire

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"
	"unicode/utf8"
)

const (
	// TypeLen is the size of a frame's type code.
	TypeLen = 4
	// ChunkSize bounds a single payload read.
	ChunkSize = 2048
)

// ErrClosed is the panic value for Send or Receive after Close.
var ErrClosed = errors.New("wire: use of closed connection")

// Message is one decoded frame.
type Message struct {
	Type    string
	Payload string
}

func (m Message) String() string {
	return m.Type + ":" + m.Payload
}

// Conn owns one socket and exchanges frames over it. Send and Receive may be
// used from different goroutines but neither is safe for concurrent use with
// itself.
type Conn struct {
	conn net.Conn
	rw   *bufio.ReadWriter

	mu     sync.Mutex
	closed bool
}

// NewConn wraps an established socket, typically one returned by Accept.
func NewConn(c net.Conn) *Conn {
	return &Conn{
		conn: c,
		rw:   bufio.NewReadWriter(bufio.NewReader(c), bufio.NewWriter(c)),
	}
}

// Dial connects to host:port.
func Dial(host string, port int, timeout time.Duration) (*Conn, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	c, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return NewConn(c), nil
}

// RemoteAddr is the address of the other end.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

func (c *Conn) mustBeOpen() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		panic(ErrClosed)
	}
}

// Send writes one frame and flushes it. msgType must be exactly TypeLen bytes.
// Any I/O error is returned; the connection must still be closed by the caller.
func (c *Conn) Send(msgType, payload string) error {
	if len(msgType) != TypeLen {
		panic(fmt.Sprintf("wire: message type %q is not %d bytes", msgType, TypeLen))
	}
	c.mustBeOpen()

	var header [TypeLen + 4]byte
	copy(header[:TypeLen], msgType)
	binary.BigEndian.PutUint32(header[TypeLen:], uint32(len(payload)))

	if _, err := c.rw.Write(header[:]); err != nil {
		return fmt.Errorf("failed to send header: %w", err)
	}
	if _, err := c.rw.WriteString(payload); err != nil {
		return fmt.Errorf("failed to send payload: %w", err)
	}
	if err := c.rw.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}
	return nil
}

// Receive reads one frame. ok is false when the stream ended before a frame
// started, ended inside a frame, or the frame was not valid UTF-8.
func (c *Conn) Receive() (msg Message, ok bool) {
	c.mustBeOpen()

	var msgType [TypeLen]byte
	if _, err := io.ReadFull(c.rw, msgType[:]); err != nil {
		return Message{}, false
	}
	var length uint32
	if err := binary.Read(c.rw, binary.BigEndian, &length); err != nil {
		return Message{}, false
	}

	// Grow with the data actually received rather than trusting the header.
	payload := make([]byte, 0, min(int(length), ChunkSize))
	var chunk [ChunkSize]byte
	for uint32(len(payload)) < length {
		want := min(ChunkSize, int(length)-len(payload))
		n, err := io.ReadFull(c.rw, chunk[:want])
		payload = append(payload, chunk[:n]...)
		if err != nil {
			return Message{}, false
		}
	}

	if !utf8.Valid(msgType[:]) || !utf8.Valid(payload) {
		return Message{}, false
	}
	return Message{Type: string(msgType[:]), Payload: string(payload)}, true
}

// Close releases the socket. Further Send or Receive calls panic.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}
