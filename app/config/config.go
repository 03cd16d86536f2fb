package config

import "github.com/go-ini/ini"

var (
	LoadFile = mustLoad("/opt/portarium/config.ini")
	Config   = Configuration{
		Database:  NewDefaultDatabaseConfig(LoadFile.Section("db")),
		Messaging: NewMessagingConfig(LoadFile.Section("rabbitMQ")),
		LOG:       NewDefaultLogConfig(LoadFile.Section("log")),
		Outbox:    NewDefaultOutboxConfig(LoadFile.Section("outbox")),
		Policy:    NewDefaultPolicyConfig(LoadFile.Section("policy")),
	}
)

// mustLoad falls back to an empty file so every section resolves to its
// defaults when no config file is deployed (tests, local runs).
func mustLoad(path string) *ini.File {
	file, err := ini.Load(path)
	if err != nil {
		return ini.Empty()
	}
	return file
}

type Configuration struct {
	Database  DatabaseConfig  `json:"database"`
	Messaging MessagingConfig `json:"messaging"`
	LOG       LogConfig       `json:"log"`
	Outbox    OutboxConfig    `json:"outbox"`
	Policy    PolicyConfig    `json:"policy"`
}
