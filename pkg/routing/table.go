// Package routing holds a peer's address book and the next-hop policies used
// when searching the overlay for a peer that is not a direct neighbor.
package routing

import (
	"fmt"
	"net"
	"strconv"
	"sync"
)

// Address is where a peer listens.
type Address struct {
	Host string
	Port int
}

func (a Address) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// Entry is one row of a Table.
type Entry struct {
	ID string
	Address
}

// Table is the capacity-bounded set of peers known to one peer. The owning
// peer counts against the capacity, so a table holds at most maxPeers-1
// entries. Entries keep their insertion order and are never removed.
type Table struct {
	mu       sync.RWMutex
	maxPeers int
	order    []string
	peers    map[string]Address
}

// NewTable creates an empty table. maxPeers must be at least 1.
func NewTable(maxPeers int) *Table {
	if maxPeers < 1 {
		panic(fmt.Sprintf("routing: maxPeers must be at least 1, got %d", maxPeers))
	}
	return &Table{
		maxPeers: maxPeers,
		peers:    make(map[string]Address),
	}
}

// MaxPeers is the capacity the table was created with.
func (t *Table) MaxPeers() int {
	return t.maxPeers
}

// Add records id at addr. It is a no-op, returning false, when id is already
// known or the table is full.
func (t *Table) Add(id string, addr Address) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.peers[id]; ok {
		return false
	}
	if len(t.peers)+1 >= t.maxPeers {
		return false
	}
	t.peers[id] = addr
	t.order = append(t.order, id)
	return true
}

// Lookup returns the address of id.
func (t *Table) Lookup(id string) (Address, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	addr, ok := t.peers[id]
	return addr, ok
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.peers)
}

// Entries returns a snapshot in insertion order.
func (t *Table) Entries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	entries := make([]Entry, 0, len(t.order))
	for _, id := range t.order {
		entries = append(entries, Entry{ID: id, Address: t.peers[id]})
	}
	return entries
}
