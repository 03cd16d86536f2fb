package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Environment is the deployment stage a run executes in.
type Environment string

const (
	EnvDev     Environment = "dev"
	EnvStaging Environment = "staging"
	EnvProd    Environment = "prod"
)

// Mode is how a profile enforces its decisions: strict blocks, logged only
// records the decision and lets the caller proceed.
type Mode string

const (
	ModeStrict Mode = "strict"
	ModeLogged Mode = "logged"
)

// EnforcementProfile says, per environment, at which tier approvals start,
// how they are enforced and whether tier overrides are accepted.
type EnforcementProfile struct {
	ApprovalRequiredAbove Tier `yaml:"approval_required_above"`
	Enforcement           Mode `yaml:"enforcement"`
	AllowOverride         bool `yaml:"allow_override"`
}

type Profiles map[Environment]EnforcementProfile

// For falls back to the prod profile for unknown environments; an unnamed
// environment must never be looser than production.
func (p Profiles) For(env Environment) EnforcementProfile {
	if profile, ok := p[env]; ok {
		return profile
	}
	return DefaultProfiles()[EnvProd]
}

func DefaultProfiles() Profiles {
	return Profiles{
		EnvDev: {
			ApprovalRequiredAbove: TierManualOnly,
			Enforcement:           ModeLogged,
			AllowOverride:         true,
		},
		EnvStaging: {
			ApprovalRequiredAbove: TierHumanApprove,
			Enforcement:           ModeStrict,
			AllowOverride:         true,
		},
		EnvProd: {
			ApprovalRequiredAbove: TierAssisted,
			Enforcement:           ModeStrict,
			AllowOverride:         false,
		},
	}
}

type profilesFile struct {
	Profiles map[string]EnforcementProfile `yaml:"profiles"`
}

// LoadProfiles reads operator overrides from a YAML file and merges them over
// the defaults. Environments absent from the file keep their default profile.
func LoadProfiles(path string) (Profiles, error) {
	profiles := DefaultProfiles()
	if path == "" {
		return profiles, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	parsed := profilesFile{}
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, err
	}

	for name, profile := range parsed.Profiles {
		if !IsValidTier(profile.ApprovalRequiredAbove) {
			return nil, fmt.Errorf("profile %q has unknown tier %q", name, profile.ApprovalRequiredAbove)
		}
		if profile.Enforcement != ModeStrict && profile.Enforcement != ModeLogged {
			return nil, fmt.Errorf("profile %q has unknown enforcement mode %q", name, profile.Enforcement)
		}
		profiles[Environment(name)] = profile
	}
	return profiles, nil
}
