package peer

import (
	"github.com/udit2303/p2p-overlay/pkg/messages"
	"github.com/udit2303/p2p-overlay/pkg/metrics"
	"github.com/udit2303/p2p-overlay/pkg/routing"
	"github.com/udit2303/p2p-overlay/pkg/util"
	"github.com/udit2303/p2p-overlay/pkg/wire"
)

// FindPeer searches for target, forwarding the search at most ttl hops deep
// and never through the peers in discarded. It returns the target's address
// and the discard set the search ended with. discarded is not modified.
func (p *Peer) FindPeer(target string, ttl int, discarded routing.DiscardSet) (routing.Address, routing.DiscardSet, bool) {
	own := routing.NewDiscardSet()
	own.Merge(discarded)
	return p.findPeer(p.log.With("target", target), target, ttl, own)
}

// findPeer repeatedly asks the router for a hop. A hop that is the target
// is probed with PING; any other hop is asked to continue the search with
// one less ttl. Every failed hop stays discarded for the rest of the search,
// so the loop ends once the router runs out of candidates.
func (p *Peer) findPeer(log *util.Logger, target string, ttl int, discarded routing.DiscardSet) (routing.Address, routing.DiscardSet, bool) {
	observe := metrics.ObserveFind()
	for {
		hop, ok := p.router(target, p.table, p.table.MaxPeers(), discarded)
		if !ok {
			log.Debug("No peers left to search", "discarded", discarded.Slice())
			observe(false)
			return routing.Address{}, discarded, false
		}

		if hop.ID == target {
			res := p.exchange(log, hop.ID, hop.Address, messages.TypePing, "", true)
			if len(res) > 0 && res[0] == (wire.Message{Type: messages.TypeResponse, Payload: messages.Pong}) {
				log.Debug("Peer is online", "hop", hop.ID)
				observe(true)
				return hop.Address, discarded, true
			}
			log.Debug("Peer is offline", "hop", hop.ID)
			discarded.Add(hop.ID)
			continue
		}

		log.Debug("Forwarding search", "hop", hop.ID, "ttl", ttl)
		if ttl <= 0 {
			observe(false)
			return routing.Address{}, discarded, false
		}

		// Keep the forwarded search from routing back here.
		discarded.Add(p.cfg.ID)
		payload, err := messages.Encode(messages.FindRequest{
			PeerID:    target,
			Discarded: discarded.Slice(),
			TTL:       ttl - 1,
		})
		if err != nil {
			log.Error("Failed to encode search", "error", err)
			observe(false)
			return routing.Address{}, discarded, false
		}

		res := p.exchange(log, hop.ID, hop.Address, messages.TypeFind, payload, true)
		var resp messages.FindResponse
		if len(res) == 0 || res[0].Type != messages.TypeResponse || messages.Decode(res[0].Payload, &resp) != nil {
			log.Debug("Forwarder did not answer", "hop", hop.ID)
			discarded.Add(hop.ID)
			discarded.Remove(p.cfg.ID)
			continue
		}

		if !resp.Found() {
			log.Debug("Forwarder did not find target", "hop", hop.ID, "discarded", resp.Discarded)
			discarded.Merge(routing.NewDiscardSet(resp.Discarded...))
			discarded.Add(hop.ID)
			discarded.Remove(p.cfg.ID)
			continue
		}

		log.Debug("Forwarder found target", "hop", hop.ID, "host", resp.Host, "port", resp.Port)
		observe(true)
		return routing.Address{Host: resp.Host, Port: resp.Port}, discarded, true
	}
}
