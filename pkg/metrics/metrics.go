package metrics

import "expvar"

var (
	messagesReceived = expvar.NewMap("messages_received_total")
	messagesSent     = expvar.NewMap("messages_sent_total")
	findsStarted     = expvar.NewInt("finds_started_total")
	findsSucceeded   = expvar.NewInt("finds_succeeded_total")
	findsFailed      = expvar.NewInt("finds_failed_total")
	activeWorkers    = expvar.NewInt("active_workers")
	knownPeers       = expvar.NewMap("known_peers")
)

// IncReceived counts one inbound message of msgType.
func IncReceived(msgType string) {
	messagesReceived.Add(msgType, 1)
}

// IncSent counts one outbound message of msgType.
func IncSent(msgType string) {
	messagesSent.Add(msgType, 1)
}

// ObserveFind records the start of a search and returns a function to call
// with its outcome.
func ObserveFind() func(found bool) {
	findsStarted.Add(1)
	return func(found bool) {
		if found {
			findsSucceeded.Add(1)
		} else {
			findsFailed.Add(1)
		}
	}
}

// WorkerStarted tracks a connection worker; call the result when it exits.
func WorkerStarted() func() {
	activeWorkers.Add(1)
	return func() { activeWorkers.Add(-1) }
}

// SetKnownPeers records the table size of peer id.
func SetKnownPeers(id string, n int) {
	v := new(expvar.Int)
	v.Set(int64(n))
	knownPeers.Set(id, v)
}

func KnownPeers(id string) int64 {
	if v, ok := knownPeers.Get(id).(*expvar.Int); ok {
		return v.Value()
	}
	return 0
}

// Received returns the count for msgType.
func Received(msgType string) int64 {
	if v, ok := messagesReceived.Get(msgType).(*expvar.Int); ok {
		return v.Value()
	}
	return 0
}

func FindsStarted() int64 {
	return findsStarted.Value()
}

func ActiveWorkers() int64 {
	return activeWorkers.Value()
}
