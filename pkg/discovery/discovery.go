// Package discovery finds overlay peers on the local network so they can seed
// a peer's table without a hand-written peer list.
package discovery

import (
	"encoding/hex"
	"strings"

	"github.com/grandcat/zeroconf"
	"golang.org/x/crypto/blake2b"
)

// Peer is an overlay member announced on the local network.
type Peer struct {
	ID   string
	IP   string
	Port int
}

const peerIDKey = "peerid="

// ServiceType derives the mDNS service type of the overlay called network,
// so unrelated overlays on one LAN do not see each other.
func ServiceType(network string) string {
	sum := blake2b.Sum256([]byte(network))
	return "_p2p-" + hex.EncodeToString(sum[:8]) + "._tcp"
}

// peersFromEntry expands an mDNS entry into one Peer per IPv4 address. The
// identity comes from the TXT record, falling back to the instance name.
func peersFromEntry(entry *zeroconf.ServiceEntry) []Peer {
	id := entry.Instance
	for _, txt := range entry.Text {
		if strings.HasPrefix(txt, peerIDKey) {
			id = strings.TrimPrefix(txt, peerIDKey)
		}
	}
	if id == "" {
		return nil
	}
	var peers []Peer
	for _, ip := range entry.AddrIPv4 {
		peers = append(peers, Peer{ID: id, IP: ip.String(), Port: entry.Port})
	}
	return peers
}
