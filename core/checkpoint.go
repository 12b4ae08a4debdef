package core

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
)

// checkpointIdempotencyKey derives a stable identifier for a checkpoint
// from the three fields that define it logically: phase, turn, and
// confidence score. Two RequestCheckpoint decisions over the same
// (phase, turn, overallScore) triple — e.g. one decided live and one
// re-decided after a crash-and-restart before the first was durably
// acknowledged — produce the same key even though CheckpointSummary.ID
// is a fresh uuid each time. Grounded on the teacher's
// graph/checkpoint.go computeIdempotencyKey, narrowed from hashing an
// entire (runID, stepID, workItems, state) tuple to this domain's three
// scalar fields.
func checkpointIdempotencyKey(phase Phase, turn int, overallScore float64) string {
	h := sha256.New()
	h.Write([]byte(phase))

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(turn))
	h.Write(buf[:])

	binary.BigEndian.PutUint64(buf[:], math.Float64bits(overallScore))
	h.Write(buf[:])

	return "sha256:" + hex.EncodeToString(h.Sum(nil))
}
