package objects

import (
	"errors"
	"fmt"

	"portarium/app/evidence"

	"gorm.io/gorm"
)

func IsNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// ChainVerificationError means a persisted evidence chain no longer verifies:
// tampering or a code defect. It must reach an operator; nothing in this
// codebase repairs a broken chain.
type ChainVerificationError struct {
	AggregateType string
	AggregateID   string
	Result        evidence.VerificationResult
}

func (e *ChainVerificationError) Error() string {
	return fmt.Sprintf("evidence chain for %s %s failed verification: %s", e.AggregateType, e.AggregateID, e.Result.String())
}
