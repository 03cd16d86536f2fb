package policy

import "fmt"

// Tier is the oversight level required by a workflow or one of its actions.
type Tier string

const (
	TierAuto         Tier = "Auto"
	TierAssisted     Tier = "Assisted"
	TierHumanApprove Tier = "HumanApprove"
	TierManualOnly   Tier = "ManualOnly"
)

var tierSeverity = map[Tier]int{
	TierAuto:         0,
	TierAssisted:     1,
	TierHumanApprove: 2,
	TierManualOnly:   3,
}

// Severity orders tiers: Auto(0) < Assisted(1) < HumanApprove(2) < ManualOnly(3).
func Severity(t Tier) int {
	return tierSeverity[t]
}

func IsValidTier(t Tier) bool {
	_, ok := tierSeverity[t]
	return ok
}

func ParseTier(value string) (Tier, error) {
	t := Tier(value)
	if !IsValidTier(t) {
		return "", fmt.Errorf("unknown execution tier %q", value)
	}
	return t, nil
}

// Decision of a tier evaluation. ManualOnly is never auto-approved, whatever
// the environment threshold says.
type Decision string

const (
	DecisionAllow           Decision = "Allow"
	DecisionRequireApproval Decision = "RequireApproval"
	DecisionDeny            Decision = "Deny"
)

// TierOverride requests evaluating a transition at a different tier than the
// workflow declares. Only honored in environments whose profile allows it.
type TierOverride struct {
	Tier          Tier   `json:"tier"`
	RequestedBy   string `json:"requestedBy"`
	Justification string `json:"justification"`
}

// TierEvaluation is the full outcome of evaluating a tier against an
// environment profile. Callers must handle every Decision variant.
type TierEvaluation struct {
	Decision Decision
	// EffectiveTier is the tier the decision was made at: the override's
	// tier when one was applied, the workflow's otherwise.
	EffectiveTier   Tier
	Enforcement     Mode
	OverrideApplied bool
}

// EvaluateTierPolicy decides whether a transition at the given tier may
// proceed in the given environment. An override replaces the effective tier
// only when the environment profile permits overrides at all.
func EvaluateTierPolicy(tier Tier, env Environment, override *TierOverride, profiles Profiles) TierEvaluation {
	profile := profiles.For(env)

	effective := tier
	overrideApplied := false
	if override != nil && profile.AllowOverride {
		effective = override.Tier
		overrideApplied = true
	}

	evaluation := TierEvaluation{
		EffectiveTier:   effective,
		Enforcement:     profile.Enforcement,
		OverrideApplied: overrideApplied,
	}

	switch {
	case effective == TierManualOnly:
		evaluation.Decision = DecisionDeny
	case Severity(effective) >= Severity(profile.ApprovalRequiredAbove):
		evaluation.Decision = DecisionRequireApproval
	default:
		evaluation.Decision = DecisionAllow
	}
	return evaluation
}

// ValidateTierOverride reports whether the environment accepts tier overrides.
// Callers must reject override attempts when this is false.
func ValidateTierOverride(env Environment, profiles Profiles) bool {
	return profiles.For(env).AllowOverride
}
