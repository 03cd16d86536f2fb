package run

import (
	"fmt"

	"portarium/app/events"
	"portarium/app/evidence"
	"portarium/app/policy"
	"portarium/app/run/states"
	"portarium/pkg/contextx"
	"portarium/pkg/log"
)

// ResultKind discriminates TransitionResult variants.
type ResultKind string

const (
	// ResultApplied The transition committed; Evidence and Event are set.
	ResultApplied ResultKind = "Applied"
	// ResultAwaitingApproval Policy gated the transition; the run parked in
	// WAITING_FOR_APPROVAL when that edge was legal, otherwise nothing moved.
	ResultAwaitingApproval ResultKind = "AwaitingApproval"
	// ResultDenied Tier policy denied the transition outright.
	ResultDenied ResultKind = "Denied"
	// ResultRejected The state machine rejected the edge; Err is set.
	ResultRejected ResultKind = "Rejected"
)

// TransitionResult is a tagged union; only the fields of the matching Kind
// are meaningful. Callers must handle every variant.
type TransitionResult struct {
	Kind ResultKind

	// Applied
	Evidence evidence.Entry
	Event    events.Event

	// AwaitingApproval / Denied
	Evaluation   policy.TierEvaluation
	Requirements []policy.ApprovalRequirement
	// Parked is true when the RequireApproval outcome moved the run to
	// WAITING_FOR_APPROVAL (with its own Evidence and Event).
	Parked bool

	// Rejected
	Err error
}

// TransitionRequest asks the aggregate to move its run to Target.
type TransitionRequest struct {
	Target      states.Status
	Environment policy.Environment
	Override    *policy.TierOverride

	// Workflow and Policies are the read models approval routing needs.
	Workflow policy.WorkflowDefinition
	Policies []policy.PolicyRecord

	// ApprovalsSatisfied is asserted by the caller once every requirement
	// from a previous AwaitingApproval outcome has been collected.
	ApprovalsSatisfied bool

	RequestedBy string
}

// Aggregate binds one run to its evidence chain and drives every status
// change through the state machine and the tier/approval policy. It holds no
// locks: the caller must serialize transitions per run (row lock, named lock
// or single-writer actor), because concurrent appends to one chain race on
// the previous-hash link.
type Aggregate struct {
	run      *Run
	chain    []evidence.Entry
	hasher   evidence.Hasher
	profiles policy.Profiles
}

func NewAggregate(r *Run, hasher evidence.Hasher, profiles policy.Profiles) *Aggregate {
	if hasher == nil {
		hasher = evidence.NewSHA256Hasher()
	}
	if profiles == nil {
		profiles = policy.DefaultProfiles()
	}
	return &Aggregate{
		run:      r,
		hasher:   hasher,
		profiles: profiles,
	}
}

// Restore rebuilds an aggregate from persisted state. The chain is verified
// before anything else may happen: a broken chain kills all trust in this
// run's history and is surfaced, never repaired.
func Restore(r *Run, chain []evidence.Entry, hasher evidence.Hasher, profiles policy.Profiles) (*Aggregate, error) {
	aggregate := NewAggregate(r, hasher, profiles)
	if result := evidence.VerifyChain(chain, aggregate.hasher); !result.OK {
		return nil, fmt.Errorf("evidence chain for run %s failed verification: %s", r.RunID, result.String())
	}
	aggregate.chain = chain
	return aggregate, nil
}

func (a *Aggregate) Run() *Run {
	return a.run
}

// Chain returns the run's evidence entries in append order.
func (a *Aggregate) Chain() []evidence.Entry {
	chain := make([]evidence.Entry, len(a.chain))
	copy(chain, a.chain)
	return chain
}

func eventNameFor(from, to states.Status) string {
	switch to {
	case states.RUNNING:
		if from == states.PENDING {
			return events.RunStarted
		}
		return events.RunResumed
	case states.SUCCEEDED:
		return events.RunSucceeded
	case states.FAILED:
		return events.RunFailed
	case states.CANCELLED:
		return events.RunCancelled
	case states.PAUSED:
		return events.RunPaused
	case states.WAITING_FOR_APPROVAL:
		return events.RunWaitingForApproval
	}
	return ""
}

// commit applies a validated edge: status write, evidence append, event
// build. Everything or nothing; an append error leaves the run untouched.
func (a *Aggregate) commit(from, to states.Status, summary string) (evidence.Entry, events.Event, error) {
	var previous *evidence.Entry
	if len(a.chain) > 0 {
		previous = &a.chain[len(a.chain)-1]
	}

	entry, err := evidence.Append(previous, evidence.Draft{
		Summary: summary,
		Links: map[string]string{
			"runId":       a.run.RunID,
			"workflowId":  a.run.WorkflowID,
			"workspaceId": a.run.WorkspaceID,
		},
	}, a.hasher)
	if err != nil {
		return evidence.Entry{}, events.Event{}, err
	}

	a.run.Status = to
	if to == states.RUNNING && a.run.StartedAt == "" {
		a.run.StartedAt = nowIso()
	}
	if states.IsTerminal(to) {
		a.run.EndedAt = nowIso()
	}
	a.chain = append(a.chain, entry)

	event := events.NewRunEvent(eventNameFor(from, to), events.RunTransitionData{
		RunID:         a.run.RunID,
		WorkspaceID:   a.run.WorkspaceID,
		WorkflowID:    a.run.WorkflowID,
		CorrelationID: a.run.CorrelationID,
		FromStatus:    string(from),
		ToStatus:      string(to),
	})
	return entry, event, nil
}

// RequestTransition validates the edge, evaluates tier and approval policy,
// and commits the transition when it may proceed. A rejected or blocked
// transition mutates nothing (except the explicit park into
// WAITING_FOR_APPROVAL on a RequireApproval outcome when that edge is legal).
func (a *Aggregate) RequestTransition(ctx *contextx.Context, req TransitionRequest) TransitionResult {
	from := a.run.Status

	if err := states.AssertValidTransition(from, req.Target); err != nil {
		return TransitionResult{Kind: ResultRejected, Err: err}
	}

	evaluation := policy.EvaluateTierPolicy(a.run.ExecutionTier, req.Environment, req.Override, a.profiles)

	switch evaluation.Decision {
	case policy.DecisionDeny:
		log.Warnf(ctx, "run %s transition %s -> %s denied: effective tier %s is manual-only", a.run.RunID, from, req.Target, evaluation.EffectiveTier)
		return TransitionResult{Kind: ResultDenied, Evaluation: evaluation}

	case policy.DecisionRequireApproval:
		if evaluation.Enforcement == policy.ModeLogged {
			// logged profiles record the gate and let the transition pass
			log.Infof(ctx, "run %s transition %s -> %s would require approval (logged enforcement)", a.run.RunID, from, req.Target)
			break
		}
		if req.ApprovalsSatisfied {
			break
		}

		requirements := policy.DetermineRequiredApprovals(policy.ApprovalInput{
			Workflow:        req.Workflow,
			InitiatorUserID: a.run.InitiatedByUserID,
			Policies:        req.Policies,
		})
		result := TransitionResult{
			Kind:         ResultAwaitingApproval,
			Evaluation:   evaluation,
			Requirements: requirements,
		}

		// park the run when the state machine allows it; a requested target
		// other than WAITING_FOR_APPROVAL is NOT committed
		if states.IsValidTransition(from, states.WAITING_FOR_APPROVAL) {
			summary := fmt.Sprintf("run %s parked awaiting approval before %s", a.run.RunID, req.Target)
			if req.Target == states.WAITING_FOR_APPROVAL {
				summary = fmt.Sprintf("run %s parked awaiting approval", a.run.RunID)
			}
			entry, event, err := a.commit(from, states.WAITING_FOR_APPROVAL, summary)
			if err != nil {
				return TransitionResult{Kind: ResultRejected, Err: err}
			}
			result.Parked = true
			result.Evidence = entry
			result.Event = event
		}
		return result
	}

	summary := fmt.Sprintf("run %s transition %s -> %s", a.run.RunID, from, req.Target)
	entry, event, err := a.commit(from, req.Target, summary)
	if err != nil {
		return TransitionResult{Kind: ResultRejected, Err: err}
	}
	log.Debugf(ctx, "run %s committed transition %s -> %s", a.run.RunID, from, req.Target)
	return TransitionResult{Kind: ResultApplied, Evidence: entry, Event: event}
}
