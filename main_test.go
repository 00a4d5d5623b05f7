package main

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/udit2303/p2p-overlay/pkg/messages"
	"github.com/udit2303/p2p-overlay/pkg/wire"
)

type stubRequester struct {
	reg      *messages.Registry
	res      []wire.Message
	gotType  string
	gotPeer  string
	gotData  string
	requests int
}

func (s *stubRequester) Request(target, msgType, data string) ([]wire.Message, error) {
	if _, err := s.reg.CheckInvocable(msgType); err != nil {
		return nil, err
	}
	s.requests++
	s.gotType, s.gotPeer, s.gotData = msgType, target, data
	return s.res, nil
}

func TestHandleLine(t *testing.T) {
	reg := messages.Defaults(time.Second, nil)

	t.Run("response", func(t *testing.T) {
		s := &stubRequester{reg: reg, res: []wire.Message{{Type: messages.TypeResponse, Payload: "Hello World!"}}}
		var out bytes.Buffer
		assert.True(t, handleLine(&out, s, "echo p01 Hello World!"))
		assert.Equal(t, "ECHO", s.gotType)
		assert.Equal(t, "p01", s.gotPeer)
		assert.Equal(t, "Hello World!", s.gotData)
		assert.Equal(t, "[p01] -> Hello World!\n", out.String())
	})

	t.Run("error stops output", func(t *testing.T) {
		s := &stubRequester{reg: reg, res: []wire.Message{
			{Type: messages.TypeError, Payload: "Unable to find p09"},
			{Type: messages.TypeResponse, Payload: "ignored"},
		}}
		var out bytes.Buffer
		assert.True(t, handleLine(&out, s, "PING p09"))
		assert.Equal(t, "Unable to find p09\n", out.String())
	})

	t.Run("unexpected type", func(t *testing.T) {
		s := &stubRequester{reg: reg, res: []wire.Message{{Type: "XXXX", Payload: ""}}}
		var out bytes.Buffer
		handleLine(&out, s, "PING p02")
		assert.Equal(t, "Unable to process response.\n", out.String())
	})

	t.Run("rejected types", func(t *testing.T) {
		for _, line := range []string{"FIND p02", "ARES p02 x", "NOPE p02"} {
			s := &stubRequester{reg: reg}
			var out bytes.Buffer
			assert.False(t, handleLine(&out, s, line))
			assert.Zero(t, s.requests)
			assert.Equal(t, "Wrong message type. Please try again.\n", out.String(), line)
		}
	})

	t.Run("missing peer", func(t *testing.T) {
		s := &stubRequester{reg: reg}
		var out bytes.Buffer
		assert.False(t, handleLine(&out, s, "PING"))
		assert.Zero(t, s.requests)
	})
}

func TestMenuListsInvocableTypes(t *testing.T) {
	reg := messages.Defaults(time.Second, nil)
	var out bytes.Buffer
	menu(&out, reg)

	for _, d := range reg.Invocable() {
		assert.Contains(t, out.String(), fmt.Sprintf("- %s: %s", d.Type, d.Help))
	}
	assert.NotContains(t, out.String(), "- FIND")
	assert.NotContains(t, out.String(), "- ARES")
}
