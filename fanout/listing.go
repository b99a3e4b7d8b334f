// Package fanout implements the parallel listing and removal
// engines that read and delete a chunk distributed across N Kinetic
// drives (spec.md §4.7, C9): Listing issues one GETKEYRANGE per
// drive in parallel and concatenates the results tagged by drive id;
// Removal deletes every (drive, key) pair the listing yielded with
// bounded parallelism. Grounded on stripe's key layout (block keys
// "<name>-<seq>-<len>" plus manifest key "<name>-#") and on the
// teacher's errgroup-based fan-out idiom, generalized from HTTP
// requests to Kinetic exchanges.
package fanout

import (
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oio-go/blobkit/blob"
	"github.com/oio-go/blobkit/kinetic/client"
	"github.com/oio-go/blobkit/kinetic/rpc"
	"github.com/oio-go/blobkit/status"
)

// DefaultMaxKeys bounds a single GETKEYRANGE reply.
const DefaultMaxKeys = 10000

// Drive names one fan-out target: its client plus the service id used
// to tag the (service, key) pairs this drive contributes.
type Drive struct {
	Client    *client.Client
	ServiceID string
}

// Pair is one (drive, key) result from a Listing, consumed directly
// by Removal.
type Pair struct {
	ServiceID string
	Key       string
	drive     *client.Client
}

// Listing enumerates every chunk-related key ("<name>-#" and every
// "<name>-<seq>-<len>" block) across a set of drives.
type Listing struct {
	blob.Machine

	drives  []Drive
	name    string
	maxKeys int32
	timeout time.Duration

	pairs []Pair
	pos   int
}

// NewListing builds a Listing over name across drives.
func NewListing(drives []Drive, name string) *Listing {
	return &Listing{drives: drives, name: name, maxKeys: DefaultMaxKeys, timeout: client.DefaultTimeout}
}

// Prepare issues one GETKEYRANGE per drive in parallel (spec.md §4.7
// "Listing"): start key "<name>-#" inclusive, end key "<name>-X"
// exclusive, spanning both the manifest key and every ordinally
// numbered block key.
func (l *Listing) Prepare() status.Status {
	if st := l.RequirePrepare(); !st.Ok() {
		return st
	}

	start := []byte(l.name + "-#")
	end := []byte(l.name + "-X")

	results := make([][]Pair, len(l.drives))
	var g errgroup.Group
	for i, d := range l.drives {
		i, d := i, d
		g.Go(func() error {
			cmd := rpc.NewGetKeyRangeCommand(rpc.Header{}, start, end, true, false, l.maxKeys)
			res := d.Client.RPC(cmd, nil, l.timeout).Wait()
			if !res.Status.Ok() {
				return res.Status
			}
			if res.Reply == nil || res.Reply.Range == nil {
				return nil
			}
			pairs := make([]Pair, 0, len(res.Reply.Range.Keys))
			for _, k := range res.Reply.Range.Keys {
				pairs = append(pairs, Pair{ServiceID: d.ServiceID, Key: string(k), drive: d.Client})
			}
			results[i] = pairs
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if st, ok := err.(status.Status); ok {
			return st
		}
		return status.New(status.InternalError, "fanout: listing: %v", err)
	}

	var pairs []Pair
	for _, p := range results {
		pairs = append(pairs, p...)
	}
	l.pairs = pairs
	l.EnterPrepared()
	return status.Ok()
}

// Next yields the next (serviceID, key) pair in drive-major order:
// drives in the order they were given, each drive's keys in the order
// its GETKEYRANGE returned them (spec.md §4.1: "fan-out back-ends
// concatenate without a global sort").
func (l *Listing) Next() (id string, key string, ok bool) {
	if l.pos >= len(l.pairs) {
		return "", "", false
	}
	p := l.pairs[l.pos]
	l.pos++
	return p.ServiceID, p.Key, true
}

// Pairs returns every (drive, key) result gathered by Prepare, for
// Removal to consume directly without re-listing.
func (l *Listing) Pairs() []Pair {
	return l.pairs
}
