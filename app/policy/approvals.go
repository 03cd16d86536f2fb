package policy

// Read models consumed from the workflow and policy stores. This package only
// consumes already-evaluated policy records; the condition DSL that produced
// them lives behind the policy store.

type ActionSpec struct {
	Name string
	// TierOverride raises or lowers the oversight level for this one action.
	TierOverride *Tier
}

type WorkflowDefinition struct {
	ID            string
	Name          string
	ExecutionTier Tier
	Actions       []ActionSpec
}

// SoDKind discriminates segregation-of-duties constraints.
type SoDKind string

const (
	SoDMakerChecker      SoDKind = "MakerChecker"
	SoDDistinctApprovers SoDKind = "DistinctApprovers"
)

type SoDConstraint struct {
	Kind SoDKind
	// MinimumApprovers only applies to DistinctApprovers constraints.
	MinimumApprovers int
}

type PolicyRecord struct {
	ID             string
	Name           string
	SoDConstraints []SoDConstraint
}

// ApprovalReason names why an approval is required.
type ApprovalReason string

const (
	ReasonExecutionTierRequiresApproval ApprovalReason = "ExecutionTierRequiresApproval"
	ReasonMakerCheckerRequired          ApprovalReason = "MakerCheckerRequired"
	ReasonDistinctApproversRequired     ApprovalReason = "DistinctApproversRequired"
)

// ApprovalRequirement is derived fresh from the workflow and policy set on
// every evaluation; it is never persisted directly.
type ApprovalRequirement struct {
	Reason           ApprovalReason
	MinimumApprovers int
	ExcludedUserIDs  []string
}

type ApprovalInput struct {
	Workflow        WorkflowDefinition
	InitiatorUserID string
	Policies        []PolicyRecord
}

func workflowNeedsTierApproval(wf WorkflowDefinition) bool {
	if Severity(wf.ExecutionTier) >= Severity(TierHumanApprove) {
		return true
	}
	for _, action := range wf.Actions {
		if action.TierOverride != nil && Severity(*action.TierOverride) >= Severity(TierHumanApprove) {
			return true
		}
	}
	return false
}

// DetermineRequiredApprovals computes the approvals a run of the given
// workflow must collect before a gated transition may proceed. Requirements
// are deduplicated by reason; the first occurrence fixes the order.
func DetermineRequiredApprovals(in ApprovalInput) []ApprovalRequirement {
	var requirements []ApprovalRequirement
	seen := map[ApprovalReason]bool{}

	add := func(r ApprovalRequirement) {
		if seen[r.Reason] {
			return
		}
		seen[r.Reason] = true
		requirements = append(requirements, r)
	}

	if workflowNeedsTierApproval(in.Workflow) {
		add(ApprovalRequirement{
			Reason:           ReasonExecutionTierRequiresApproval,
			MinimumApprovers: 1,
		})
	}

	distinctIdx := -1
	for _, record := range in.Policies {
		for _, constraint := range record.SoDConstraints {
			switch constraint.Kind {
			case SoDMakerChecker:
				add(ApprovalRequirement{
					Reason:           ReasonMakerCheckerRequired,
					MinimumApprovers: 1,
					ExcludedUserIDs:  []string{in.InitiatorUserID},
				})
			case SoDDistinctApprovers:
				// First occurrence fixes the position, later constraints
				// only raise the approver count in place.
				if distinctIdx < 0 {
					add(ApprovalRequirement{
						Reason:           ReasonDistinctApproversRequired,
						MinimumApprovers: constraint.MinimumApprovers,
					})
					distinctIdx = len(requirements) - 1
				} else if constraint.MinimumApprovers > requirements[distinctIdx].MinimumApprovers {
					requirements[distinctIdx].MinimumApprovers = constraint.MinimumApprovers
				}
			}
		}
	}

	return requirements
}
