package evidence

import "fmt"

// Reason classifies a chain verification failure.
type Reason string

const (
	// ReasonHashMismatch The entry's stored hash does not match its recomputed content hash.
	ReasonHashMismatch Reason = "hash_mismatch"

	// ReasonPreviousHashMismatch The entry's previous-hash link does not match the preceding entry.
	ReasonPreviousHashMismatch Reason = "previous_hash_mismatch"

	// ReasonUnexpectedPreviousHash The first entry of a chain carries a previous hash.
	ReasonUnexpectedPreviousHash Reason = "unexpected_previous_hash"
)

// VerificationResult is the outcome of VerifyChain. When OK is false, Index
// points at the first failing entry and Reason tells why; Expected/Actual are
// set for the reasons that compare two digests. A broken chain means tampering
// or a code defect: it must be surfaced to operators, never repaired in place.
type VerificationResult struct {
	OK       bool
	Index    int
	Reason   Reason
	Expected string
	Actual   string
}

func (r VerificationResult) String() string {
	if r.OK {
		return "chain ok"
	}
	return fmt.Sprintf("chain broken at entry %d: %s (expected %q, actual %q)", r.Index, r.Reason, r.Expected, r.Actual)
}

func chainOk() VerificationResult {
	return VerificationResult{OK: true}
}

// VerifyChain re-walks a chain in order and stops at the first broken entry.
// For each entry it first checks the previous-hash link, then recomputes the
// entry's own hash from its canonical form. Callers needing a full damage
// report must collect failures across sub-chains themselves.
func VerifyChain(entries []Entry, hasher Hasher) VerificationResult {
	for i, entry := range entries {
		if i == 0 {
			if entry.PreviousHash != "" {
				return VerificationResult{
					Index:  i,
					Reason: ReasonUnexpectedPreviousHash,
					Actual: entry.PreviousHash,
				}
			}
		} else if entry.PreviousHash != entries[i-1].HashSha256 {
			return VerificationResult{
				Index:    i,
				Reason:   ReasonPreviousHashMismatch,
				Expected: entries[i-1].HashSha256,
				Actual:   entry.PreviousHash,
			}
		}

		recomputed := hasher.Sha256Hex(Canonicalize(entry))
		if recomputed != entry.HashSha256 {
			return VerificationResult{
				Index:    i,
				Reason:   ReasonHashMismatch,
				Expected: recomputed,
				Actual:   entry.HashSha256,
			}
		}
	}
	return chainOk()
}
