package policy

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverity_Ordering(t *testing.T) {
	asserter := assert.New(t)
	asserter.Less(Severity(TierAuto), Severity(TierAssisted))
	asserter.Less(Severity(TierAssisted), Severity(TierHumanApprove))
	asserter.Less(Severity(TierHumanApprove), Severity(TierManualOnly))
}

func TestParseTier(t *testing.T) {
	asserter := assert.New(t)

	tier, err := ParseTier("HumanApprove")
	asserter.NoError(err)
	asserter.Equal(TierHumanApprove, tier)

	_, err = ParseTier("SemiManual")
	asserter.Error(err)
}

func TestEvaluateTierPolicy_ManualOnlyAlwaysDenied(t *testing.T) {
	asserter := assert.New(t)
	profiles := DefaultProfiles()

	for _, env := range []Environment{EnvDev, EnvStaging, EnvProd} {
		evaluation := EvaluateTierPolicy(TierManualOnly, env, nil, profiles)
		asserter.Equalf(DecisionDeny, evaluation.Decision, "env %s", env)
	}
}

func TestEvaluateTierPolicy_ProdDefaults(t *testing.T) {
	asserter := assert.New(t)
	profiles := DefaultProfiles()

	cases := map[Tier]Decision{
		TierAuto:         DecisionAllow,
		TierAssisted:     DecisionRequireApproval,
		TierHumanApprove: DecisionRequireApproval,
		TierManualOnly:   DecisionDeny,
	}
	for tier, expected := range cases {
		evaluation := EvaluateTierPolicy(tier, EnvProd, nil, profiles)
		asserter.Equalf(expected, evaluation.Decision, "tier %s", tier)
		asserter.Equal(ModeStrict, evaluation.Enforcement)
		asserter.False(evaluation.OverrideApplied)
	}
}

func TestEvaluateTierPolicy_DevLoggedThreshold(t *testing.T) {
	asserter := assert.New(t)
	profiles := DefaultProfiles()

	evaluation := EvaluateTierPolicy(TierHumanApprove, EnvDev, nil, profiles)
	asserter.Equal(DecisionAllow, evaluation.Decision)
	asserter.Equal(ModeLogged, evaluation.Enforcement)

	evaluation = EvaluateTierPolicy(TierManualOnly, EnvDev, nil, profiles)
	asserter.Equal(DecisionDeny, evaluation.Decision)
}

func TestEvaluateTierPolicy_OverrideHonoredOnlyWhereAllowed(t *testing.T) {
	asserter := assert.New(t)
	profiles := DefaultProfiles()
	override := &TierOverride{Tier: TierAuto, RequestedBy: "u-ops", Justification: "rollout freeze drill"}

	// staging accepts overrides
	evaluation := EvaluateTierPolicy(TierHumanApprove, EnvStaging, override, profiles)
	asserter.Equal(DecisionAllow, evaluation.Decision)
	asserter.True(evaluation.OverrideApplied)
	asserter.Equal(TierAuto, evaluation.EffectiveTier)

	// prod forbids them; the declared tier stays effective
	evaluation = EvaluateTierPolicy(TierHumanApprove, EnvProd, override, profiles)
	asserter.Equal(DecisionRequireApproval, evaluation.Decision)
	asserter.False(evaluation.OverrideApplied)
	asserter.Equal(TierHumanApprove, evaluation.EffectiveTier)
}

func TestEvaluateTierPolicy_OverrideToManualOnlyDenies(t *testing.T) {
	asserter := assert.New(t)
	profiles := DefaultProfiles()
	override := &TierOverride{Tier: TierManualOnly, RequestedBy: "u-ops", Justification: "manual cutover"}

	evaluation := EvaluateTierPolicy(TierAuto, EnvStaging, override, profiles)
	asserter.Equal(DecisionDeny, evaluation.Decision)
	asserter.True(evaluation.OverrideApplied)
	asserter.Equal(TierManualOnly, evaluation.EffectiveTier)
}

func TestValidateTierOverride(t *testing.T) {
	asserter := assert.New(t)
	profiles := DefaultProfiles()

	asserter.True(ValidateTierOverride(EnvDev, profiles))
	asserter.True(ValidateTierOverride(EnvStaging, profiles))
	asserter.False(ValidateTierOverride(EnvProd, profiles))
}

func TestProfiles_UnknownEnvironmentFallsBackToProd(t *testing.T) {
	asserter := assert.New(t)
	profiles := DefaultProfiles()

	profile := profiles.For(Environment("qa"))
	asserter.Equal(profiles[EnvProd], profile)
}

func TestLoadProfiles_MergesYamlOverDefaults(t *testing.T) {
	requirer := require.New(t)

	path := t.TempDir() + "/profiles.yaml"
	content := `
profiles:
  staging:
    approval_required_above: Assisted
    enforcement: strict
    allow_override: false
  qa:
    approval_required_above: HumanApprove
    enforcement: logged
    allow_override: true
`
	requirer.NoError(os.WriteFile(path, []byte(content), 0644))

	profiles, err := LoadProfiles(path)
	requirer.NoError(err)

	requirer.Equal(TierAssisted, profiles[EnvStaging].ApprovalRequiredAbove)
	requirer.False(profiles[EnvStaging].AllowOverride)
	requirer.Equal(ModeLogged, profiles[Environment("qa")].Enforcement)
	// untouched environments keep their defaults
	requirer.Equal(DefaultProfiles()[EnvProd], profiles[EnvProd])
	requirer.Equal(DefaultProfiles()[EnvDev], profiles[EnvDev])
}

func TestLoadProfiles_RejectsUnknownTierAndMode(t *testing.T) {
	requirer := require.New(t)

	path := t.TempDir() + "/bad.yaml"
	requirer.NoError(os.WriteFile(path, []byte("profiles:\n  dev:\n    approval_required_above: Sometimes\n    enforcement: strict\n"), 0644))
	_, err := LoadProfiles(path)
	requirer.Error(err)

	requirer.NoError(os.WriteFile(path, []byte("profiles:\n  dev:\n    approval_required_above: Auto\n    enforcement: shouty\n"), 0644))
	_, err = LoadProfiles(path)
	requirer.Error(err)
}

func TestLoadProfiles_EmptyPathReturnsDefaults(t *testing.T) {
	profiles, err := LoadProfiles("")
	require.NoError(t, err)
	require.Equal(t, DefaultProfiles(), profiles)
}
