package routing

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Policy selects the next hop of a search for target among the known peers
// that are not discarded. ok is false when no candidate is left.
//
// A known, undiscarded target is always returned as is. Policies panic when
// known holds more peers than maxPeers allows.
type Policy func(target string, known *Table, maxPeers int, discarded DiscardSet) (hop Entry, ok bool)

// ByName returns the policy registered under name: "simple" or "distance".
func ByName(name string) (Policy, error) {
	switch strings.ToLower(name) {
	case "simple", "first":
		return FirstMatch, nil
	case "distance", "":
		return Distance, nil
	default:
		return nil, fmt.Errorf("unknown routing policy %q", name)
	}
}

func checkCapacity(known *Table, maxPeers int) {
	if n := known.Len(); n+1 > maxPeers {
		panic(fmt.Sprintf("routing: %d known peers exceed capacity %d", n, maxPeers))
	}
}

func direct(target string, known *Table, discarded DiscardSet) (Entry, bool) {
	if discarded.Has(target) {
		return Entry{}, false
	}
	addr, ok := known.Lookup(target)
	return Entry{ID: target, Address: addr}, ok
}

// FirstMatch returns the first undiscarded peer in insertion order.
func FirstMatch(target string, known *Table, maxPeers int, discarded DiscardSet) (Entry, bool) {
	checkCapacity(known, maxPeers)
	if hop, ok := direct(target, known, discarded); ok {
		return hop, true
	}
	for _, e := range known.Entries() {
		if !discarded.Has(e.ID) {
			return e, true
		}
	}
	return Entry{}, false
}

// Distance returns the undiscarded peer whose identifier numeral is closest
// to the target's, the earliest inserted winning ties. Peers without a
// numeral are never picked. A target without a numeral falls back to
// FirstMatch.
func Distance(target string, known *Table, maxPeers int, discarded DiscardSet) (Entry, bool) {
	checkCapacity(known, maxPeers)
	if hop, ok := direct(target, known, discarded); ok {
		return hop, true
	}
	goal, ok := Numeral(target)
	if !ok {
		return FirstMatch(target, known, maxPeers, discarded)
	}

	var (
		best     Entry
		found    bool
		bestDist uint64
	)
	for _, e := range known.Entries() {
		if discarded.Has(e.ID) {
			continue
		}
		n, ok := Numeral(e.ID)
		if !ok {
			continue
		}
		d := absDiff(n, goal)
		if !found || d < bestDist {
			best, bestDist, found = e, d, true
		}
	}
	return best, found
}

// Numeral extracts the decimal coordinate of an identifier such as "p07":
// the digits following its letter prefix.
func Numeral(id string) (uint64, bool) {
	digits := strings.TrimLeftFunc(id, unicode.IsLetter)
	if digits == "" {
		return 0, false
	}
	n, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func absDiff(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}
