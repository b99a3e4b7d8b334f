package fanout

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/oio-go/blobkit/blob"
	"github.com/oio-go/blobkit/internal/telemetry"
	"github.com/oio-go/blobkit/slice"
	"github.com/oio-go/blobkit/status"
)

// ReplicatedUpload broadcasts every phase to K target back-ends and
// reports success once M of them agree (spec.md §4.8). Targets are
// any blob.Upload implementation — local, rawx, kvdrive, memcache, or
// s3 — so a single replicated set can mix back-end kinds.
type ReplicatedUpload struct {
	blob.Machine

	targets []blob.Upload
	quorum  int
	metrics Metrics
}

// NewReplicatedUpload builds an Upload broadcasting to targets,
// requiring at least quorum of them to agree on every phase.
func NewReplicatedUpload(targets []blob.Upload, quorum int) *ReplicatedUpload {
	return &ReplicatedUpload{targets: targets, quorum: quorum, metrics: defaultMetrics}
}

// WithMetrics overrides the default no-op Metrics sink.
func (u *ReplicatedUpload) WithMetrics(m Metrics) *ReplicatedUpload {
	u.metrics = m
	return u
}

// SetXattr broadcasts the attribute to every target (spec.md §4.8:
// "Xattrs are set on every target before Commit").
func (u *ReplicatedUpload) SetXattr(key, value string) status.Status {
	if u.State() != blob.StateInit {
		return status.New(status.InternalError, "fanout: SetXattr called in state %v", u.State())
	}
	return u.broadcastAll("setxattr", func(t blob.Upload) status.Status {
		return t.SetXattr(key, value)
	})
}

// Prepare broadcasts Prepare to every target; succeeds iff at least
// quorum targets return OK.
func (u *ReplicatedUpload) Prepare() status.Status {
	if st := u.RequirePrepare(); !st.Ok() {
		return st
	}
	st := u.broadcastAll("prepare", func(t blob.Upload) status.Status {
		return t.Prepare()
	})
	if !st.Ok() {
		return st
	}
	u.EnterPrepared()
	return status.Ok()
}

// Write broadcasts s to every target, blocking only on the slowest of
// the first quorum replies (spec.md §4.8: "Write is blocking on the
// slowest of the first M replies").
func (u *ReplicatedUpload) Write(s *slice.Slice) status.Status {
	if st := u.RequireWrite(); !st.Ok() {
		return st
	}
	data := s.Bytes()
	return u.broadcastFirstQuorum("write", func(t blob.Upload) status.Status {
		return t.Write(slice.FromBytes(data))
	})
}

// Commit broadcasts Commit to every target; succeeds iff at least
// quorum return OK.
func (u *ReplicatedUpload) Commit() status.Status {
	if st := u.RequireTerminal(); !st.Ok() {
		return st
	}
	defer u.EnterDone()

	ctx, span := telemetry.StartSpan(context.Background(), "blobkit.upload",
		trace.WithAttributes(attribute.Int("blobkit.targets", len(u.targets)), attribute.Int("blobkit.quorum", u.quorum)))
	defer span.End()

	st := u.broadcastAll("commit", func(t blob.Upload) status.Status {
		return t.Commit()
	})
	if !st.Ok() {
		telemetry.RecordError(ctx, fmt.Errorf("%s", st.Explanation))
	}
	return st
}

// Abort broadcasts Abort to every target best-effort.
func (u *ReplicatedUpload) Abort() status.Status {
	if u.State() == blob.StateDone {
		return status.New(status.InternalError, "fanout: abort called in state Done")
	}
	defer u.EnterDone()

	var wg sync.WaitGroup
	for _, t := range u.targets {
		t := t
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = t.Abort()
		}()
	}
	wg.Wait()
	return status.Ok()
}

// broadcastAll runs work against every target concurrently, waits for
// all of them, and succeeds iff at least quorum returned OK; the
// aggregate failure is the worst cause among the failing minority.
func (u *ReplicatedUpload) broadcastAll(op string, work func(blob.Upload) status.Status) status.Status {
	results := make([]status.Status, len(u.targets))
	var wg sync.WaitGroup
	for i, t := range u.targets {
		i, t := i, t
		wg.Add(1)
		go func() {
			defer wg.Done()
			u.metrics.TargetAttempt(op)
			results[i] = work(t)
			if results[i].Ok() {
				u.metrics.TargetSuccess(op)
			}
		}()
	}
	wg.Wait()

	oks := 0
	var agg statusAccumulator
	for _, st := range results {
		if st.Ok() {
			oks++
		} else {
			agg.record(st)
		}
	}
	met := oks >= u.quorum
	u.metrics.Quorum(op, met)
	if met {
		return status.Ok()
	}
	if worst := agg.worst(); !worst.Ok() {
		return worst
	}
	return status.New(status.InternalError, "fanout: quorum %d not reached (%d ok of %d)", u.quorum, oks, len(u.targets))
}

// broadcastFirstQuorum runs work against every target concurrently
// and returns as soon as quorum of them have succeeded, or as soon as
// success becomes unreachable; stragglers continue in the background
// and their results are discarded.
func (u *ReplicatedUpload) broadcastFirstQuorum(op string, work func(blob.Upload) status.Status) status.Status {
	type outcome struct {
		status status.Status
	}
	results := make(chan outcome, len(u.targets))
	for _, t := range u.targets {
		t := t
		go func() {
			u.metrics.TargetAttempt(op)
			st := work(t)
			if st.Ok() {
				u.metrics.TargetSuccess(op)
			}
			results <- outcome{status: st}
		}()
	}

	oks := 0
	fails := 0
	var agg statusAccumulator
	for i := 0; i < len(u.targets); i++ {
		r := <-results
		if r.status.Ok() {
			oks++
			if oks >= u.quorum {
				u.metrics.Quorum(op, true)
				return status.Ok()
			}
		} else {
			fails++
			agg.record(r.status)
			if len(u.targets)-fails < u.quorum {
				u.metrics.Quorum(op, false)
				if worst := agg.worst(); !worst.Ok() {
					return worst
				}
				return status.New(status.InternalError, "fanout: quorum %d unreachable", u.quorum)
			}
		}
	}
	u.metrics.Quorum(op, false)
	return status.New(status.InternalError, "fanout: quorum %d not reached", u.quorum)
}
