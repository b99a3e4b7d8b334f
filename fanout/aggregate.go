package fanout

import (
	"sync"

	"github.com/oio-go/blobkit/status"
)

// statusAccumulator gathers the worst status across a set of
// concurrent sub-operations (spec.md §7: "the worst-severity failure
// across the set is surfaced").
type statusAccumulator struct {
	mu   sync.Mutex
	st   status.Status
	seen bool
}

func (a *statusAccumulator) record(st status.Status) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.seen {
		a.st = st
		a.seen = true
		return
	}
	a.st = status.Worst(a.st, st)
}

func (a *statusAccumulator) worst() status.Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.seen {
		return status.Ok()
	}
	return a.st
}
