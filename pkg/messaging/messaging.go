package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"portarium/app/events"
	"portarium/pkg/log"

	"github.com/streadway/amqp"
)

const (
	defaultHeartbeat    = 10 * time.Second
	defaultLocale       = "en_US"
	defaultProduct      = "portarium"
	defaultVersion      = "0.1"
	defaultPublishRetry = 3
	defaultDialInterval = 3 * time.Second
)

// Connector holds a parsed broker URL plus the connection options carried in
// its query string.
type Connector struct {
	Url string

	Heartbeat    time.Duration
	Locale       string
	Properties   amqp.Table
	PublishRetry int
}

func NewConnector(connUrl string) (*Connector, error) {
	uri, err := url.Parse(connUrl)
	if err != nil {
		return nil, err
	}

	connector := &Connector{
		Url:          fmt.Sprintf("amqp://%s@%s%s", uri.User.String(), uri.Host, uri.Path),
		Heartbeat:    defaultHeartbeat,
		Locale:       defaultLocale,
		PublishRetry: defaultPublishRetry,
		Properties: amqp.Table{
			"product": defaultProduct,
			"version": defaultVersion,
		},
	}

	qs := uri.Query()

	heartbeatStr := qs.Get("heartbeat")
	if heartbeatStr != "" {
		heartbeatSec, err := strconv.Atoi(heartbeatStr)
		if err == nil {
			connector.Heartbeat = time.Duration(heartbeatSec) * time.Second
		}
	}

	retryStr := qs.Get("publish_retry")
	if retryStr != "" {
		retry, err := strconv.Atoi(retryStr)
		if err == nil && retry > 0 {
			connector.PublishRetry = retry
		}
	}

	return connector, nil
}

// Publisher delivers CloudEvent envelopes to one durable topic exchange,
// routing key = event type. It holds a single send connection and reconnects
// on channel or connection failure; it implements events.Publisher.
type Publisher struct {
	connector *Connector
	exchange  string

	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	closedCh chan *amqp.Error
	closed   bool
}

func NewPublisher(connector *Connector, exchange string) *Publisher {
	return &Publisher{
		connector: connector,
		exchange:  exchange,
	}
}

// ensureChannel must be called with mu held.
func (p *Publisher) ensureChannel() error {
	if p.closed {
		return errors.New("publisher closed")
	}

	if p.channel != nil {
		select {
		case e := <-p.closedCh:
			if e != nil {
				log.Warnf(nil, "publisher connection got event %s, recoverable %v", e.Error(), e.Recover)
			}
			p.channel = nil
		default:
			return nil
		}
	}

	if p.conn != nil && !p.conn.IsClosed() {
		_ = p.conn.Close()
	}

	dialCfg := amqp.Config{
		Heartbeat: p.connector.Heartbeat,
		Locale:    p.connector.Locale,
		Properties: amqp.Table{
			"product": p.connector.Properties["product"],
			"version": p.connector.Properties["version"],
		},
	}
	conn, err := amqp.DialConfig(p.connector.Url, dialCfg)
	if err != nil {
		return err
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return err
	}

	err = channel.ExchangeDeclare(p.exchange, amqp.ExchangeTopic, true, false, false, false, nil)
	if err != nil {
		_ = conn.Close()
		return err
	}

	p.conn = conn
	p.channel = channel
	p.closedCh = make(chan *amqp.Error, 1)
	conn.NotifyClose(p.closedCh)
	log.Debugf(nil, "publisher connected to exchange '%s'", p.exchange)
	return nil
}

func (p *Publisher) publish(body []byte, routingKey string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureChannel(); err != nil {
		return err
	}

	msg := amqp.Publishing{
		ContentType:     "application/json",
		ContentEncoding: "utf-8",
		DeliveryMode:    amqp.Persistent,
		Body:            body,
	}
	err := p.channel.Publish(p.exchange, routingKey, false, false, msg)
	if err != nil {
		// force a reconnect on the next attempt
		p.channel = nil
	}
	return err
}

// Publish sends one event, retrying with a fresh connection on transport
// failure. The event type is the routing key, so consumers bind with patterns
// like com.portarium.run.*.v1.
func (p *Publisher) Publish(ctx context.Context, event events.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	var lastErr error
	for i := 0; i < p.connector.PublishRetry; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = p.publish(body, event.Type)
		if lastErr == nil {
			log.Debugf(nil, "published event %s to exchange '%s' with routing key '%s'", event.ID, p.exchange, event.Type)
			return nil
		}
		log.Warnf(nil, "publish event %s failed, error: %s", event.ID, lastErr.Error())

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(defaultDialInterval):
		}
	}
	return fmt.Errorf("publish failed, error: %s", lastErr.Error())
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	p.channel = nil
	if p.conn != nil && !p.conn.IsClosed() {
		return p.conn.Close()
	}
	return nil
}
