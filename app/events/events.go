package events

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	// Source identifies this control plane in event envelopes.
	Source = "portarium/control-plane"

	typeNamespace = "com.portarium"
)

// Event is the CloudEvent-style envelope written to the outbox and delivered
// to downstream consumers. Delivery is at-least-once and unordered, so Data
// always carries the natural keys consumers need to deduplicate.
type Event struct {
	ID          string            `json:"id"`
	Type        string            `json:"type"`
	Source      string            `json:"source"`
	Subject     string            `json:"subject"`
	WorkspaceID string            `json:"workspaceId"`
	Time        string            `json:"time"`
	Data        map[string]string `json:"data"`
}

// Publisher delivers an event to the message bus. Implementations own their
// transport timeout policy and return an error on transport failure.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// TypeName builds a versioned event type string, e.g.
// com.portarium.run.RunStarted.v1. The version increments only on breaking
// schema changes.
func TypeName(aggregate, name string, version int) string {
	return fmt.Sprintf("%s.%s.%s.v%d", typeNamespace, aggregate, name, version)
}

func newEvent(aggregate, name string, subject, workspaceID string, data map[string]string) Event {
	return Event{
		ID:          uuid.NewString(),
		Type:        TypeName(aggregate, name, 1),
		Source:      Source,
		Subject:     subject,
		WorkspaceID: workspaceID,
		Time:        time.Now().UTC().Format(time.RFC3339),
		Data:        data,
	}
}
