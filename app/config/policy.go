package config

import "github.com/go-ini/ini"

type PolicyConfig struct {
	// Environment selects the enforcement profile (dev/staging/prod).
	Environment string `json:"environment"`
	// ProfilesPath points at an optional YAML file overriding the
	// built-in enforcement profiles.
	ProfilesPath string `json:"profiles_path"`
}

func NewDefaultPolicyConfig(c *ini.Section) PolicyConfig {
	environment := c.Key("environment").String()
	if environment == "" {
		environment = "prod"
	}
	return PolicyConfig{
		Environment:  environment,
		ProfilesPath: c.Key("profiles_path").String(),
	}
}
