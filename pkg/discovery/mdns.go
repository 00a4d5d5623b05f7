package discovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
)

const domain = "local."

// Announce advertises the peer id listening on port until ctx is done.
func Announce(ctx context.Context, network, id string, port int) error {
	server, err := zeroconf.Register(id, ServiceType(network), domain, port, []string{peerIDKey + id, "app=p2p-overlay"}, nil)
	if err != nil {
		return fmt.Errorf("failed to announce service: %w", err)
	}
	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()
	return nil
}

// Browse collects the peers announced on network within timeout.
func Browse(ctx context.Context, network string, timeout time.Duration) ([]Peer, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize resolver: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	var (
		mu    sync.Mutex
		peers []Peer
		wg    sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for entry := range entries {
			found := peersFromEntry(entry)
			mu.Lock()
			peers = append(peers, found...)
			mu.Unlock()
		}
	}()

	if err := resolver.Browse(ctx, ServiceType(network), domain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse: %w", err)
	}
	<-ctx.Done()
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	return peers, nil
}
