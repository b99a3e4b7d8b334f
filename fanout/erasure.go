package fanout

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/klauspost/reedsolomon"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/oio-go/blobkit/blob"
	"github.com/oio-go/blobkit/internal/telemetry"
	"github.com/oio-go/blobkit/slice"
	"github.com/oio-go/blobkit/status"
)

// erasureMagic marks every fragment frame so a reader can validate it
// before handing the payload to the Reed-Solomon decoder (spec.md
// §4.9: "each fragment carries a magic header validated before
// decoding").
var erasureMagic = [4]byte{'E', 'R', 'A', '1'}

const erasureHeaderSize = 4 + 4 + 8 // magic + fragment index + original payload length

// ErasureConfig names the (k, m) shard counts an Encoder was built
// with. The module never calls reedsolomon.New itself — per
// SPEC_FULL.md §10.1, callers construct the Encoder (typically via
// reedsolomon.New(k, m)) and hand it in, alongside the same k/m it
// was built with so fan-out can size its target list and missing-
// fragment threshold without re-deriving them from the Encoder.
type ErasureConfig struct {
	DataShards   int
	ParityShards int
}

func (c ErasureConfig) total() int {
	return c.DataShards + c.ParityShards
}

// ErasureUpload buffers the full payload, then on Commit encodes it
// into k data fragments plus m parity fragments of equal length and
// writes one fragment to each of k+m targets (spec.md §4.9).
type ErasureUpload struct {
	blob.Machine

	targets []blob.Upload
	enc     reedsolomon.Encoder
	cfg     ErasureConfig
	buf     []byte
	metrics Metrics
}

// NewErasureUpload builds an Upload distributing fragments across
// targets, which must number exactly cfg.DataShards+cfg.ParityShards,
// encoding with enc (built by the caller, typically via
// reedsolomon.New(cfg.DataShards, cfg.ParityShards)).
func NewErasureUpload(targets []blob.Upload, enc reedsolomon.Encoder, cfg ErasureConfig) *ErasureUpload {
	return &ErasureUpload{targets: targets, enc: enc, cfg: cfg, metrics: defaultMetrics}
}

// WithMetrics overrides the default no-op Metrics sink.
func (u *ErasureUpload) WithMetrics(m Metrics) *ErasureUpload {
	u.metrics = m
	return u
}

// SetXattr broadcasts the attribute to every fragment target.
func (u *ErasureUpload) SetXattr(key, value string) status.Status {
	if u.State() != blob.StateInit {
		return status.New(status.InternalError, "fanout: SetXattr called in state %v", u.State())
	}
	return u.broadcastAll("setxattr", func(t blob.Upload) status.Status {
		return t.SetXattr(key, value)
	})
}

func (u *ErasureUpload) broadcastAll(op string, work func(blob.Upload) status.Status) status.Status {
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

	var agg statusAccumulator
	for _, st := range results {
		if !st.Ok() {
			agg.record(st)
		}
	}
	return agg.worst()
}

// Prepare broadcasts Prepare to every fragment target; all k+m must
// succeed since every target is required to hold exactly one
// fragment.
func (u *ErasureUpload) Prepare() status.Status {
	if st := u.RequirePrepare(); !st.Ok() {
		return st
	}
	if len(u.targets) != u.cfg.total() {
		return status.New(status.InternalError, "fanout: erasure upload needs %d targets, got %d", u.cfg.total(), len(u.targets))
	}
	if st := u.broadcastAll("prepare", func(t blob.Upload) status.Status { return t.Prepare() }); !st.Ok() {
		return st
	}
	u.EnterPrepared()
	return status.Ok()
}

// Write appends to the working buffer; fragments are only computed
// and sent on Commit.
func (u *ErasureUpload) Write(s *slice.Slice) status.Status {
	if st := u.RequireWrite(); !st.Ok() {
		return st
	}
	u.buf = append(u.buf, s.Bytes()...)
	return status.Ok()
}

// Commit encodes the buffered payload into k data fragments and m
// parity fragments of equal length, frames each with the magic
// header, and writes + commits one fragment per target.
func (u *ErasureUpload) Commit() status.Status {
	if st := u.RequireTerminal(); !st.Ok() {
		return st
	}
	defer u.EnterDone()

	ctx, span := telemetry.StartSpan(context.Background(), "blobkit.upload",
		trace.WithAttributes(
			attribute.Int("blobkit.data_shards", u.cfg.DataShards),
			attribute.Int("blobkit.parity_shards", u.cfg.ParityShards),
		))
	defer span.End()

	shards, err := u.enc.Split(u.buf)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return status.New(status.InternalError, "fanout: split: %v", err)
	}
	if err := u.enc.Encode(shards); err != nil {
		telemetry.RecordError(ctx, err)
		return status.New(status.InternalError, "fanout: encode: %v", err)
	}

	originalSize := uint64(len(u.buf))
	results := make([]status.Status, len(u.targets))
	var wg sync.WaitGroup
	for i, t := range u.targets {
		i, t := i, t
		wg.Add(1)
		go func() {
			defer wg.Done()
			u.metrics.TargetAttempt("commit")
			frame := frameFragment(i, originalSize, shards[i])
			if st := t.Write(slice.FromBytes(frame)); !st.Ok() {
				results[i] = st
				return
			}
			results[i] = t.Commit()
			if results[i].Ok() {
				u.metrics.TargetSuccess("commit")
			}
		}()
	}
	wg.Wait()

	var agg statusAccumulator
	for _, st := range results {
		if !st.Ok() {
			agg.record(st)
		}
	}
	worst := agg.worst()
	if !worst.Ok() {
		telemetry.RecordError(ctx, fmt.Errorf("%s", worst.Explanation))
	}
	return worst
}

// Abort best-effort aborts every target.
func (u *ErasureUpload) Abort() status.Status {
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

func frameFragment(index int, originalSize uint64, shard []byte) []byte {
	frame := make([]byte, erasureHeaderSize+len(shard))
	copy(frame[0:4], erasureMagic[:])
	binary.BigEndian.PutUint32(frame[4:8], uint32(index))
	binary.BigEndian.PutUint64(frame[8:16], originalSize)
	copy(frame[erasureHeaderSize:], shard)
	return frame
}

func unframeFragment(frame []byte) (index int, originalSize uint64, shard []byte, err error) {
	if len(frame) < erasureHeaderSize {
		return 0, 0, nil, fmt.Errorf("fanout: fragment too short (%d bytes)", len(frame))
	}
	if string(frame[0:4]) != string(erasureMagic[:]) {
		return 0, 0, nil, fmt.Errorf("fanout: bad fragment magic")
	}
	index = int(binary.BigEndian.Uint32(frame[4:8]))
	originalSize = binary.BigEndian.Uint64(frame[8:16])
	shard = frame[erasureHeaderSize:]
	return index, originalSize, shard, nil
}

// ErasureDownload reads all k+m fragments in parallel, tracks a
// missing-fragment mask, and reconstructs the original payload once
// every fragment read has finished, from whichever fragments came
// back (at least k are needed). Decoding does not start before the
// slowest read returns.
type ErasureDownload struct {
	blob.Machine

	targets []blob.Download
	enc     reedsolomon.Encoder
	cfg     ErasureConfig
	rng     blob.Range
	metrics Metrics

	value []byte
	eof   bool
}

// NewErasureDownload builds a Download reconstructing the payload
// from targets, one per fragment index, decoding with enc (built by
// the caller, typically via reedsolomon.New(cfg.DataShards,
// cfg.ParityShards)).
func NewErasureDownload(targets []blob.Download, enc reedsolomon.Encoder, cfg ErasureConfig) *ErasureDownload {
	return &ErasureDownload{targets: targets, enc: enc, cfg: cfg, rng: blob.All, metrics: defaultMetrics}
}

// WithMetrics overrides the default no-op Metrics sink.
func (d *ErasureDownload) WithMetrics(m Metrics) *ErasureDownload {
	d.metrics = m
	return d
}

// SetRange restricts the delivered window of the reconstructed
// payload.
func (d *ErasureDownload) SetRange(offset, size uint64) status.Status {
	if d.State() != blob.StateInit {
		return status.New(status.InternalError, "fanout: SetRange called in state %v", d.State())
	}
	d.rng = blob.Range{Start: offset, Size: size}
	return status.Ok()
}

// Prepare reads every fragment in parallel, reconstructs the
// original payload from whichever k+ are available, and fails with
// InternalError if fewer than k fragments could be read.
func (d *ErasureDownload) Prepare() status.Status {
	if st := d.RequirePrepare(); !st.Ok() {
		return st
	}
	if len(d.targets) != d.cfg.total() {
		return status.New(status.InternalError, "fanout: erasure download needs %d targets, got %d", d.cfg.total(), len(d.targets))
	}

	ctx, span := telemetry.StartSpan(context.Background(), "blobkit.download",
		trace.WithAttributes(
			attribute.Int("blobkit.data_shards", d.cfg.DataShards),
			attribute.Int("blobkit.parity_shards", d.cfg.ParityShards),
		))
	defer span.End()

	shards := make([][]byte, d.cfg.total())
	var originalSize uint64
	var mu sync.Mutex
	var wg sync.WaitGroup
	available := 0

	for i, t := range d.targets {
		i, t := i, t
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.metrics.TargetAttempt("reconstruct")
			if st := t.Prepare(); !st.Ok() {
				return
			}
			s := slice.New()
			for !t.IsEof() {
				if st := t.Read(s); !st.Ok() {
					return
				}
			}
			idx, size, shard, err := unframeFragment(s.Bytes())
			if err != nil || idx != i {
				return
			}
			mu.Lock()
			shards[i] = append([]byte(nil), shard...)
			originalSize = size
			available++
			mu.Unlock()
			d.metrics.TargetSuccess("reconstruct")
		}()
	}
	wg.Wait()

	if available < d.cfg.DataShards {
		err := fmt.Errorf("only %d of %d required fragments available", available, d.cfg.DataShards)
		telemetry.RecordError(ctx, err)
		return status.New(status.InternalError, "fanout: %v", err)
	}

	if err := d.enc.Reconstruct(shards); err != nil {
		telemetry.RecordError(ctx, err)
		return status.New(status.InternalError, "fanout: reconstruct: %v", err)
	}
	d.metrics.ErasureReconstruct(available, d.cfg.total())

	var buf []byte
	for _, s := range shards[:d.cfg.DataShards] {
		buf = append(buf, s...)
	}
	if uint64(len(buf)) > originalSize {
		buf = buf[:originalSize]
	}

	if !d.rng.IsAll() {
		end := d.rng.End(uint64(len(buf)))
		start := d.rng.Start
		if start > uint64(len(buf)) {
			start = uint64(len(buf))
		}
		if end > uint64(len(buf)) {
			end = uint64(len(buf))
		}
		buf = buf[start:end]
	}

	d.value = buf
	d.EnterPrepared()
	return status.Ok()
}

// IsEof reports whether the reconstructed payload has been delivered.
func (d *ErasureDownload) IsEof() bool {
	return d.eof
}

// Read delivers the whole reconstructed payload in one call.
func (d *ErasureDownload) Read(s *slice.Slice) status.Status {
	if st := d.RequireWrite(); !st.Ok() {
		return st
	}
	if !d.eof {
		s.Append(d.value)
		d.eof = true
	}
	return status.Ok()
}
