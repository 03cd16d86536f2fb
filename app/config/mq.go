package config

import (
	"fmt"

	"github.com/go-ini/ini"
)

type MessagingConfig struct {
	Connection string `json:"connection"`
	Exchange   string `json:"exchange"`
}

func NewMessagingConfig(c *ini.Section) MessagingConfig {
	host := c.Key("host").Value()
	user := c.Key("user").Value()
	passwd := c.Key("passwd").Value()
	exchange := c.Key("exchange").Value()
	if exchange == "" {
		exchange = "portarium.events"
	}
	return MessagingConfig{
		Connection: fmt.Sprintf("amqp://%s:%s@%s/", user, passwd, host),
		Exchange:   exchange,
	}
}
