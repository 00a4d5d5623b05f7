package routing

import "sort"

// DiscardSet holds the peers excluded from one search: unreachable hops,
// hops that already failed to find the target, and the searching peers
// themselves. A set belongs to a single top-level search and is never shared.
type DiscardSet map[string]struct{}

func NewDiscardSet(ids ...string) DiscardSet {
	set := make(DiscardSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func (s DiscardSet) Add(id string) {
	s[id] = struct{}{}
}

// Remove is a no-op when id is absent.
func (s DiscardSet) Remove(id string) {
	delete(s, id)
}

func (s DiscardSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Merge adds every member of other.
func (s DiscardSet) Merge(other DiscardSet) {
	for id := range other {
		s[id] = struct{}{}
	}
}

func (s DiscardSet) Clone() DiscardSet {
	clone := make(DiscardSet, len(s))
	clone.Merge(s)
	return clone
}

// Slice returns the members sorted, the form they travel in on the wire.
func (s DiscardSet) Slice() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
