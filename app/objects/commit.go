package objects

import (
	"fmt"

	"portarium/app/evidence"
	"portarium/app/policy"
	domain "portarium/app/run"
	"portarium/pkg/contextx"
	"portarium/pkg/log"
)

func runLockName(runID string) string {
	return "run-transition-" + runID
}

// CreateRun persists a freshly initiated run.
func CreateRun(ctx *contextx.Context, d *domain.Run) error {
	if err := d.Validate(); err != nil {
		return err
	}
	return NewRunFromDomain(d).Save(ctx)
}

// LoadRunAggregate rebuilds a run aggregate from its row and verified
// evidence chain. The run not existing is an error here, not a nil: every
// caller of this function is about to act on the run.
func LoadRunAggregate(ctx *contextx.Context, runID string, hasher evidence.Hasher, profiles policy.Profiles) (*domain.Aggregate, error) {
	runObject, err := QueryRunByID(ctx, runID)
	if err != nil {
		return nil, err
	}
	if runObject == nil {
		return nil, fmt.Errorf("run %s not found", runID)
	}

	if hasher == nil {
		hasher = evidence.NewSHA256Hasher()
	}
	chain, err := LoadEvidenceChain(ctx, AggregateTypeRun, runID, hasher)
	if err != nil {
		return nil, err
	}
	return domain.Restore(runObject.ToDomain(), chain, hasher, profiles)
}

// TransitionRun drives one policy-checked transition end to end: it loads the
// aggregate under a per-run named lock, asks it to transition, and commits
// whatever the aggregate mutated — run row, new evidence entries, and the
// outbox event — in one database transaction. Nothing is published here; the
// dispatcher delivers the outbox entry later.
func TransitionRun(ctx *contextx.Context, runID string, req domain.TransitionRequest, hasher evidence.Hasher, profiles policy.Profiles) (domain.TransitionResult, error) {
	var result domain.TransitionResult

	err := WithNamedLock(ctx, runLockName(runID), func() error {
		return Transaction(ctx, func(subCtx *contextx.Context) error {
			aggregate, err := LoadRunAggregate(subCtx, runID, hasher, profiles)
			if err != nil {
				return err
			}
			persistedSeq := len(aggregate.Chain())

			result = aggregate.RequestTransition(subCtx, req)
			if result.Kind == domain.ResultRejected && result.Err != nil {
				log.Infof(subCtx, "run %s transition to %s rejected: %s", runID, req.Target, result.Err.Error())
				return nil
			}

			mutated := result.Kind == domain.ResultApplied ||
				(result.Kind == domain.ResultAwaitingApproval && result.Parked)
			if !mutated {
				return nil
			}

			runObject := NewRunFromDomain(aggregate.Run())
			runObject.SetCreated()
			if err := runObject.Update(subCtx, "status", "started_at", "ended_at"); err != nil {
				return err
			}
			if err := AppendEvidence(subCtx, AggregateTypeRun, runID, aggregate.Chain(), persistedSeq); err != nil {
				return err
			}
			if _, err := EnqueueOutbox(subCtx, result.Event); err != nil {
				return err
			}
			return nil
		})
	})
	if err != nil {
		return domain.TransitionResult{}, err
	}
	return result, nil
}
