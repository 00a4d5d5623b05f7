package wire

import (
	"encoding/binary"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loopback returns both ends of a fresh TCP connection on 127.0.0.1.
func loopback(t *testing.T) (client *Conn, server net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- c
	}()

	addr := ln.Addr().(*net.TCPAddr)
	client, err = Dial("127.0.0.1", addr.Port, time.Second)
	require.NoError(t, err)

	server, ok := <-accepted
	require.True(t, ok, "accept failed")
	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})
	return client, server
}

func TestRoundTrip(t *testing.T) {
	payloads := []string{
		"",
		"PONG",
		"héllo wörld ✓ 日本語",
		strings.Repeat("x", 3*ChunkSize+17),
	}
	for _, payload := range payloads {
		client, raw := loopback(t)
		server := NewConn(raw)

		require.NoError(t, client.Send("ECHO", payload))
		msg, ok := server.Receive()
		require.True(t, ok)
		assert.Equal(t, "ECHO", msg.Type)
		assert.Equal(t, payload, msg.Payload)
	}
}

func TestResponsesArriveInOrderUntilClose(t *testing.T) {
	client, raw := loopback(t)
	server := NewConn(raw)

	go func() {
		_ = server.Send("RESP", "one")
		_ = server.Send("RESP", "two")
		_ = server.Close()
	}()

	var got []string
	for {
		msg, ok := client.Receive()
		if !ok {
			break
		}
		got = append(got, msg.Payload)
	}
	assert.Equal(t, []string{"one", "two"}, got)
}

func TestPeerClosedBeforeSendingIsEndOfStream(t *testing.T) {
	client, raw := loopback(t)
	require.NoError(t, raw.Close())

	msg, ok := client.Receive()
	assert.False(t, ok)
	assert.Equal(t, Message{}, msg)
}

func TestShortPayloadIsEndOfStream(t *testing.T) {
	client, raw := loopback(t)

	header := make([]byte, 8)
	copy(header, "RESP")
	binary.BigEndian.PutUint32(header[4:], 10)
	_, err := raw.Write(append(header, "abc"...))
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	_, ok := client.Receive()
	assert.False(t, ok)
}

func TestTruncatedHeaderIsEndOfStream(t *testing.T) {
	client, raw := loopback(t)
	_, err := raw.Write([]byte("RESP\x00\x00"))
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	_, ok := client.Receive()
	assert.False(t, ok)
}

func TestInvalidUTF8IsEndOfStream(t *testing.T) {
	client, raw := loopback(t)
	header := make([]byte, 8)
	copy(header, "RESP")
	binary.BigEndian.PutUint32(header[4:], 2)
	_, err := raw.Write(append(header, 0xff, 0xfe))
	require.NoError(t, err)

	_, ok := client.Receive()
	assert.False(t, ok)
}

func TestFrameLayout(t *testing.T) {
	client, raw := loopback(t)
	require.NoError(t, client.Send("PING", "ab"))

	buf := make([]byte, 10)
	require.NoError(t, raw.SetReadDeadline(time.Now().Add(time.Second)))
	_, err := io.ReadFull(raw, buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{'P', 'I', 'N', 'G', 0, 0, 0, 2, 'a', 'b'}, buf)
}

func TestUseAfterClosePanics(t *testing.T) {
	client, _ := loopback(t)
	require.NoError(t, client.Close())
	require.NoError(t, client.Close())

	assert.PanicsWithValue(t, ErrClosed, func() { _ = client.Send("PING", "") })
	assert.PanicsWithValue(t, ErrClosed, func() { client.Receive() })
}

func TestBadTypeCodePanics(t *testing.T) {
	client, _ := loopback(t)
	assert.Panics(t, func() { _ = client.Send("PINGS", "") })
	assert.Panics(t, func() { _ = client.Send("PI", "") })
}
