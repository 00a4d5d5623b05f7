package routing

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const maxPeers = 1024

func knownPeers(t *testing.T) *Table {
	t.Helper()
	table := NewTable(maxPeers)
	for i := 1; i <= 4; i++ {
		require.True(t, table.Add(fmt.Sprintf("p%02d", i), Address{Host: fmt.Sprintf("h%d", i), Port: 5000 + i}))
	}
	return table
}

var policies = map[string]Policy{
	"simple":   FirstMatch,
	"distance": Distance,
}

func assertHop(t *testing.T, table *Table, want string, hop Entry, ok bool) {
	t.Helper()
	require.True(t, ok, "expected a hop")
	addr, known := table.Lookup(want)
	require.True(t, known)
	assert.Equal(t, want, hop.ID)
	assert.Equal(t, addr, hop.Address)
}

func TestKnownTargetIsReturnedDirectly(t *testing.T) {
	for name, policy := range policies {
		t.Run(name, func(t *testing.T) {
			table := knownPeers(t)
			hop, ok := policy("p03", table, maxPeers, NewDiscardSet())
			assertHop(t, table, "p03", hop, ok)
		})
	}
}

func TestAllDiscardedYieldsNone(t *testing.T) {
	for name, policy := range policies {
		t.Run(name, func(t *testing.T) {
			table := knownPeers(t)
			_, ok := policy("p99", table, maxPeers, NewDiscardSet("p01", "p02", "p03", "p04"))
			assert.False(t, ok)
		})
	}
}

func TestDiscardedTargetIsNotReturnedDirectly(t *testing.T) {
	table := knownPeers(t)
	hop, ok := Distance("p02", table, maxPeers, NewDiscardSet("p02"))
	// p01 and p03 are both at distance one; p01 was inserted first.
	assertHop(t, table, "p01", hop, ok)
}

func TestEmptyTableYieldsNone(t *testing.T) {
	for name, policy := range policies {
		t.Run(name, func(t *testing.T) {
			_, ok := policy("p01", NewTable(maxPeers), maxPeers, NewDiscardSet())
			assert.False(t, ok)
		})
	}
}

func TestFirstMatchUnknownPeer(t *testing.T) {
	table := knownPeers(t)
	hop, ok := FirstMatch("p99", table, maxPeers, NewDiscardSet())
	assertHop(t, table, "p01", hop, ok)

	hop, ok = FirstMatch("p99", table, maxPeers, NewDiscardSet("p01", "p02"))
	assertHop(t, table, "p03", hop, ok)
}

func TestDistanceUnknownPeer(t *testing.T) {
	table := knownPeers(t)
	hop, ok := Distance("p99", table, maxPeers, NewDiscardSet())
	assertHop(t, table, "p04", hop, ok)
}

func TestDistanceSomeDiscarded(t *testing.T) {
	table := knownPeers(t)
	hop, ok := Distance("p99", table, maxPeers, NewDiscardSet("p04"))
	assertHop(t, table, "p03", hop, ok)
}

func TestDistanceTieKeepsFirstMinimum(t *testing.T) {
	table := NewTable(maxPeers)
	table.Add("p12", Address{Host: "a", Port: 1})
	table.Add("p08", Address{Host: "b", Port: 2})
	table.Add("p20", Address{Host: "c", Port: 3})

	hop, ok := Distance("p10", table, maxPeers, NewDiscardSet())
	assertHop(t, table, "p12", hop, ok)
}

func TestDistanceFarTargetStillRouted(t *testing.T) {
	table := NewTable(3)
	table.Add("p01", Address{Host: "a", Port: 1})
	hop, ok := Distance("p900", table, 3, NewDiscardSet())
	assertHop(t, table, "p01", hop, ok)
}

func TestDistanceSkipsIdentifiersWithoutNumeral(t *testing.T) {
	table := NewTable(maxPeers)
	table.Add("gateway", Address{Host: "a", Port: 1})
	table.Add("p40", Address{Host: "b", Port: 2})

	hop, ok := Distance("p01", table, maxPeers, NewDiscardSet())
	assertHop(t, table, "p40", hop, ok)

	hop, ok = Distance("relay", table, maxPeers, NewDiscardSet())
	assertHop(t, table, "gateway", hop, ok)
}

func TestPoliciesPanicOverCapacity(t *testing.T) {
	for name, policy := range policies {
		t.Run(name, func(t *testing.T) {
			table := knownPeers(t)
			assert.Panics(t, func() { policy("p99", table, 1, NewDiscardSet()) })
			assert.Panics(t, func() { policy("p99", table, 4, NewDiscardSet()) })
			assert.NotPanics(t, func() { policy("p99", table, 5, NewDiscardSet()) })
		})
	}
}

func TestByName(t *testing.T) {
	for _, name := range []string{"simple", "distance", "Distance", ""} {
		_, err := ByName(name)
		assert.NoError(t, err, name)
	}
	_, err := ByName("random")
	assert.Error(t, err)
}

func TestTableCapacity(t *testing.T) {
	table := NewTable(3)
	assert.True(t, table.Add("p01", Address{Host: "a", Port: 1}))
	assert.False(t, table.Add("p01", Address{Host: "z", Port: 9}), "re-adding is a no-op")
	assert.True(t, table.Add("p02", Address{Host: "b", Port: 2}))
	assert.False(t, table.Add("p03", Address{Host: "c", Port: 3}), "owner occupies one slot")
	assert.Equal(t, 2, table.Len())

	addr, ok := table.Lookup("p01")
	require.True(t, ok)
	assert.Equal(t, Address{Host: "a", Port: 1}, addr)

	assert.Equal(t, []Entry{
		{ID: "p01", Address: Address{Host: "a", Port: 1}},
		{ID: "p02", Address: Address{Host: "b", Port: 2}},
	}, table.Entries())
}

func TestTableSingleSlotHoldsOnlyOwner(t *testing.T) {
	table := NewTable(1)
	assert.False(t, table.Add("p01", Address{Host: "a", Port: 1}))
	assert.Panics(t, func() { NewTable(0) })
}

func TestNumeral(t *testing.T) {
	n, ok := Numeral("p07")
	assert.True(t, ok)
	assert.Equal(t, uint64(7), n)

	n, ok = Numeral("peer120")
	assert.True(t, ok)
	assert.Equal(t, uint64(120), n)

	for _, id := range []string{"p", "", "p7x", "07-a"} {
		_, ok := Numeral(id)
		assert.False(t, ok, id)
	}
}

func TestDiscardSet(t *testing.T) {
	set := NewDiscardSet("p02", "p01")
	set.Remove("p99")
	set.Add("p03")
	assert.True(t, set.Has("p03"))
	assert.Equal(t, []string{"p01", "p02", "p03"}, set.Slice())

	clone := set.Clone()
	clone.Remove("p01")
	assert.True(t, set.Has("p01"), "clone must not alias")

	set.Merge(NewDiscardSet("p09"))
	assert.True(t, set.Has("p09"))
}
