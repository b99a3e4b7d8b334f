package blob

import "fmt"

// ChunkFingerprint is the composite key naming a stored chunk and, by
// extension, its physical fragments (spec.md §3). It is the caller's
// responsibility to populate every field; back-ends treat it as opaque
// beyond deriving fragment keys from ChunkID.
type ChunkFingerprint struct {
	Namespace   string
	Account     string
	Container   string
	ContentPath string
	ChunkID     string
}

// String renders a stable diagnostic form, used in log fields and Status
// explanations; it is not a wire format.
func (f ChunkFingerprint) String() string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", f.Namespace, f.Account, f.Container, f.ContentPath, f.ChunkID)
}

// DataFragmentKey returns the Kinetic key for a sequenced data block:
// "<chunk_id>-<seq>-<payload_len>" (spec.md §3).
func DataFragmentKey(chunkID string, seq int, payloadLen int) string {
	return fmt.Sprintf("%s-%d-%d", chunkID, seq, payloadLen)
}

// ManifestKey returns the reserved trailing-manifest key "<chunk_id>-#".
// Its presence is the durable "committed" marker for the whole chunk
// (spec.md §3, §9 glossary "Manifest").
func ManifestKey(chunkID string) string {
	return chunkID + "-#"
}

// FragmentKey returns the Kinetic key for an erasure-coded fragment at
// the given index: "<chunk_id>-<index>" (spec.md §4.9).
func FragmentKey(chunkID string, index int) string {
	return fmt.Sprintf("%s-%d", chunkID, index)
}
