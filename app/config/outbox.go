package config

import "github.com/go-ini/ini"

type OutboxConfig struct {
	BatchSize    int `json:"batch_size"`
	MaxRetries   int `json:"max_retries"`
	PollInterval int `json:"poll_interval"`
}

func NewDefaultOutboxConfig(c *ini.Section) OutboxConfig {
	batch_size, _ := c.Key("batch_size").Int()
	if batch_size == 0 {
		batch_size = 50
	}
	max_retries, _ := c.Key("max_retries").Int()
	if max_retries == 0 {
		max_retries = 10
	}
	poll_interval, _ := c.Key("poll_interval").Int()
	if poll_interval == 0 {
		poll_interval = 5
	}
	return OutboxConfig{
		BatchSize:    batch_size,
		MaxRetries:   max_retries,
		PollInterval: poll_interval,
	}
}
