package server

import (
	"time"

	"portarium/app/config"
	"portarium/app/objects"
	"portarium/app/outbox"
	"portarium/pkg/messaging"

	"github.com/google/uuid"
)

func NewDispatcherServer() *DispatcherServer {
	return &DispatcherServer{}
}

// DispatcherServer wires the outbox delivery loop: gorm outbox store, AMQP
// publisher, dispatcher ticker.
type DispatcherServer struct {
	cfg        config.OutboxConfig
	publisher  *messaging.Publisher
	dispatcher *outbox.Dispatcher
}

func (s *DispatcherServer) Initialize() error {
	s.cfg = config.Config.Outbox
	msgCfg := config.Config.Messaging

	connector, err := messaging.NewConnector(msgCfg.Connection)
	if err != nil {
		return err
	}
	s.publisher = messaging.NewPublisher(connector, msgCfg.Exchange)

	// one instance id per process; the store's lease column keeps concurrent
	// dispatchers off each other's entries
	store := objects.NewGormOutboxStore(uuid.NewString(), outbox.UTCClock{})
	s.dispatcher = outbox.NewDispatcher(store, s.publisher, outbox.UTCClock{}, outbox.Config{
		BatchSize:    s.cfg.BatchSize,
		MaxRetries:   s.cfg.MaxRetries,
		PollInterval: time.Duration(s.cfg.PollInterval) * time.Second,
	})
	return nil
}

func (s *DispatcherServer) Start() error {
	s.dispatcher.Start()
	return nil
}

func (s *DispatcherServer) Stop() error {
	s.dispatcher.Stop()
	return s.publisher.Close()
}
