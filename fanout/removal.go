package fanout

import (
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/oio-go/blobkit/blob"
	"github.com/oio-go/blobkit/kinetic/rpc"
	"github.com/oio-go/blobkit/status"
)

// DefaultParallelism is the number of DELETEs kept in flight at once
// (spec.md §4.7 "Removal": "parallelism P (default 8)").
const DefaultParallelism = 8

// Removal deletes every (drive, key) pair a Listing yielded, with
// bounded parallelism: P deletes already in flight; for each
// completion, the next is launched.
type Removal struct {
	blob.Machine

	listing     *Listing
	parallelism int
	timeout     time.Duration
	metrics     Metrics
}

// NewRemoval builds a Removal that will delete every pair listing's
// Prepare gathers.
func NewRemoval(listing *Listing) *Removal {
	return &Removal{listing: listing, parallelism: DefaultParallelism, timeout: defaultTimeout(), metrics: defaultMetrics}
}

// WithMetrics overrides the default no-op Metrics sink.
func (r *Removal) WithMetrics(m Metrics) *Removal {
	r.metrics = m
	return r
}

func defaultTimeout() time.Duration {
	return 30 * time.Second
}

// WithParallelism overrides the default in-flight DELETE count.
func (r *Removal) WithParallelism(p int) *Removal {
	if p > 0 {
		r.parallelism = p
	}
	return r
}

// Prepare acquires the listing if it hasn't already been prepared.
func (r *Removal) Prepare() status.Status {
	if st := r.RequirePrepare(); !st.Ok() {
		return st
	}
	if r.listing.State() == blob.StateInit {
		if st := r.listing.Prepare(); !st.Ok() {
			return st
		}
	}
	r.EnterPrepared()
	return status.Ok()
}

// Commit issues a DELETE for every (drive, key) pair with at most
// r.parallelism in flight at once. Success iff every DELETE's status
// was OK; a failing DELETE does not stop the others from proceeding.
func (r *Removal) Commit() status.Status {
	if st := r.RequireTerminal(); !st.Ok() {
		return st
	}
	defer r.EnterDone()

	pairs := r.listing.Pairs()
	p := pool.New().WithMaxGoroutines(r.parallelism)

	var agg statusAccumulator
	for _, pair := range pairs {
		pair := pair
		p.Go(func() {
			r.metrics.TargetAttempt("removal")
			cmd := rpc.NewDeleteCommand(rpc.Header{}, []byte(pair.Key), false)
			res := pair.drive.RPC(cmd, nil, r.timeout).Wait()
			if !res.Status.Ok() {
				agg.record(res.Status)
				return
			}
			r.metrics.TargetSuccess("removal")
		})
	}
	p.Wait()

	return agg.worst()
}

// Abort cancels a prepared-but-not-committed removal.
func (r *Removal) Abort() status.Status {
	if st := r.RequireTerminal(); !st.Ok() {
		return st
	}
	r.EnterDone()
	return status.Ok()
}
