package logger

import (
	"log/slog"
)

// Standard field keys for structured logging. Use these keys consistently
// across all log statements so fields line up for log aggregation and
// querying.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Blob Operation
	// ========================================================================
	KeyOperation = "operation" // "upload", "download", "removal", "listing"
	KeyChunkID   = "chunk_id"  // chunk identifier being operated on
	KeyDrive     = "drive"     // target drive/rawx/bucket URL
	KeySeqID     = "seq_id"    // Kinetic exchange sequence ID
	KeyStatus    = "status"    // Status.Cause, as a string
	KeyStatusMsg = "status_msg"

	// ========================================================================
	// I/O Operations
	// ========================================================================
	KeyOffset       = "offset"        // byte offset for a range read/write
	KeySize         = "size"          // object or chunk size in bytes
	KeyBytesRead    = "bytes_read"    // actual bytes read
	KeyBytesWritten = "bytes_written" // actual bytes written
	KeyEOF          = "eof"           // end of stream indicator

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // operation duration in milliseconds
	KeyError      = "error"       // error message
	KeyErrorCode  = "error_code"  // numeric error code
	KeyAttempt    = "attempt"     // retry attempt number
	KeyMaxRetries = "max_retries" // maximum retry attempts

	// ========================================================================
	// Back-end / Storage
	// ========================================================================
	KeyStoreType = "store_type" // back-end kind: local, rawx, kvdrive, memcache, s3
	KeyStoreName = "store_name" // configured back-end name
	KeyBucket    = "bucket"     // S3 bucket name
	KeyKey       = "key"        // object/fragment key in the back-end
	KeyRegion    = "region"     // cloud region

	// ========================================================================
	// Fan-out
	// ========================================================================
	KeyTargetCount = "target_count" // number of fan-out targets addressed
	KeySuccessful  = "successful"   // number of targets that succeeded
	KeyQuorum      = "quorum"       // required success count
	KeyFragment    = "fragment"     // erasure fragment index
	KeyShard       = "shard"        // stripe shard index

	// ========================================================================
	// Cache Layer
	// ========================================================================
	KeyCacheHit      = "cache_hit"
	KeyCacheSize     = "cache_size"
	KeyCacheCapacity = "cache_capacity"
	KeyEvicted       = "evicted"
)

// ----------------------------------------------------------------------------
// Distributed Tracing
// ----------------------------------------------------------------------------

func TraceID(id string) slog.Attr { return slog.String(KeyTraceID, id) }
func SpanID(id string) slog.Attr  { return slog.String(KeySpanID, id) }

// ----------------------------------------------------------------------------
// Blob Operation
// ----------------------------------------------------------------------------

func Operation(op string) slog.Attr  { return slog.String(KeyOperation, op) }
func ChunkID(id string) slog.Attr    { return slog.String(KeyChunkID, id) }
func Drive(url string) slog.Attr     { return slog.String(KeyDrive, url) }
func SeqID(seq uint64) slog.Attr     { return slog.Uint64(KeySeqID, seq) }
func Status(cause string) slog.Attr  { return slog.String(KeyStatus, cause) }
func StatusMsg(msg string) slog.Attr { return slog.String(KeyStatusMsg, msg) }

// ----------------------------------------------------------------------------
// I/O Operations
// ----------------------------------------------------------------------------

func Offset(off uint64) slog.Attr  { return slog.Uint64(KeyOffset, off) }
func Size(s uint64) slog.Attr      { return slog.Uint64(KeySize, s) }
func BytesRead(n int) slog.Attr    { return slog.Int(KeyBytesRead, n) }
func BytesWritten(n int) slog.Attr { return slog.Int(KeyBytesWritten, n) }
func EOF(eof bool) slog.Attr       { return slog.Bool(KeyEOF, eof) }

// ----------------------------------------------------------------------------
// Operation Metadata
// ----------------------------------------------------------------------------

func DurationMs(ms float64) slog.Attr { return slog.Float64(KeyDurationMs, ms) }

// Err returns a slog.Attr for an error, or a zero Attr (dropped by slog) if err is nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

func ErrorCode(code int) slog.Attr { return slog.Int(KeyErrorCode, code) }
func Attempt(n int) slog.Attr      { return slog.Int(KeyAttempt, n) }
func MaxRetries(n int) slog.Attr   { return slog.Int(KeyMaxRetries, n) }

// ----------------------------------------------------------------------------
// Back-end / Storage
// ----------------------------------------------------------------------------

func StoreType(t string) slog.Attr    { return slog.String(KeyStoreType, t) }
func StoreName(name string) slog.Attr { return slog.String(KeyStoreName, name) }
func Bucket(name string) slog.Attr    { return slog.String(KeyBucket, name) }
func Key(k string) slog.Attr          { return slog.String(KeyKey, k) }
func Region(r string) slog.Attr       { return slog.String(KeyRegion, r) }

// ----------------------------------------------------------------------------
// Fan-out
// ----------------------------------------------------------------------------

func TargetCount(n int) slog.Attr { return slog.Int(KeyTargetCount, n) }
func Successful(n int) slog.Attr  { return slog.Int(KeySuccessful, n) }
func Quorum(n int) slog.Attr      { return slog.Int(KeyQuorum, n) }
func Fragment(i int) slog.Attr    { return slog.Int(KeyFragment, i) }
func Shard(i int) slog.Attr       { return slog.Int(KeyShard, i) }

// ----------------------------------------------------------------------------
// Cache Layer
// ----------------------------------------------------------------------------

func CacheHit(hit bool) slog.Attr       { return slog.Bool(KeyCacheHit, hit) }
func CacheSize(size int64) slog.Attr    { return slog.Int64(KeyCacheSize, size) }
func CacheCapacity(cap int64) slog.Attr { return slog.Int64(KeyCacheCapacity, cap) }
func Evicted(n int) slog.Attr           { return slog.Int(KeyEvicted, n) }
