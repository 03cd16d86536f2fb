package run

import (
	"fmt"
	"time"

	"portarium/app/policy"
	"portarium/app/run/states"

	"github.com/google/uuid"
)

// Run is one execution instance of a workflow. Runs are never deleted; they
// only ever reach a terminal status through validated transitions.
type Run struct {
	RunID             string        `json:"runId"`
	WorkspaceID       string        `json:"workspaceId"`
	WorkflowID        string        `json:"workflowId"`
	CorrelationID     string        `json:"correlationId"`
	ExecutionTier     policy.Tier   `json:"executionTier"`
	InitiatedByUserID string        `json:"initiatedByUserId"`
	Status            states.Status `json:"status"`

	CreatedAt string `json:"createdAtIso"`
	StartedAt string `json:"startedAtIso,omitempty"`
	EndedAt   string `json:"endedAtIso,omitempty"`
}

func nowIso() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// NewRun creates a PENDING run. The correlation id defaults to a fresh one
// when the caller has none to propagate.
func NewRun(workspaceID, workflowID, initiatedByUserID string, tier policy.Tier, correlationID string) (*Run, error) {
	if workspaceID == "" {
		return nil, fmt.Errorf("run requires a workspace id")
	}
	if workflowID == "" {
		return nil, fmt.Errorf("run requires a workflow id")
	}
	if initiatedByUserID == "" {
		return nil, fmt.Errorf("run requires an initiating user id")
	}
	if !policy.IsValidTier(tier) {
		return nil, fmt.Errorf("unknown execution tier %q", tier)
	}
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	return &Run{
		RunID:             uuid.NewString(),
		WorkspaceID:       workspaceID,
		WorkflowID:        workflowID,
		CorrelationID:     correlationID,
		ExecutionTier:     tier,
		InitiatedByUserID: initiatedByUserID,
		Status:            states.PENDING,
		CreatedAt:         nowIso(),
	}, nil
}

// Validate checks the run's timestamp invariants: a run cannot start before
// it was created nor end before it started.
func (r *Run) Validate() error {
	created, err := time.Parse(time.RFC3339, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("run %s has a bad createdAt: %s", r.RunID, err.Error())
	}

	lower := created
	if r.StartedAt != "" {
		started, err := time.Parse(time.RFC3339, r.StartedAt)
		if err != nil {
			return fmt.Errorf("run %s has a bad startedAt: %s", r.RunID, err.Error())
		}
		if started.Before(created) {
			return fmt.Errorf("run %s started before it was created", r.RunID)
		}
		lower = started
	}

	if r.EndedAt != "" {
		ended, err := time.Parse(time.RFC3339, r.EndedAt)
		if err != nil {
			return fmt.Errorf("run %s has a bad endedAt: %s", r.RunID, err.Error())
		}
		if ended.Before(lower) {
			return fmt.Errorf("run %s ended before it ran", r.RunID)
		}
	}
	return nil
}

func (r *Run) IsTerminal() bool {
	return states.IsTerminal(r.Status)
}
