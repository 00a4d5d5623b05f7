package messages

import (
	"encoding/json"
	"fmt"
)

// FindRequest is the FIND payload.
type FindRequest struct {
	PeerID    string   `json:"peerid"`
	Discarded []string `json:"discarded"`
	TTL       int      `json:"ttl"`
}

// FindResponse answers a FIND. It carries either a location or, when the
// target was not found, the discard set the forwarder ended up with.
type FindResponse struct {
	PeerID    string   `json:"peerid"`
	Host      string   `json:"host,omitempty"`
	Port      int      `json:"port,omitempty"`
	Discarded []string `json:"discarded,omitempty"`
}

// Found reports whether the response carries a location.
func (r FindResponse) Found() bool {
	return r.Host != ""
}

// AsyncRequest is the ASYN payload. Sender is the identity the reply goes to.
type AsyncRequest struct {
	Data   string `json:"data"`
	Sender string `json:"sender"`
}

// Encode renders v as a JSON payload.
func Encode(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode payload: %w", err)
	}
	return string(b), nil
}

// Decode parses a JSON payload into v.
func Decode(payload string, v any) error {
	if err := json.Unmarshal([]byte(payload), v); err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}
	return nil
}
