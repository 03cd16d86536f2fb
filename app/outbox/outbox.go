package outbox

import (
	"context"
	"time"

	"portarium/app/events"
)

// EntryStatus of an outbox entry. Once PUBLISHED an entry is immutable.
type EntryStatus string

const (
	StatusPending   EntryStatus = "PENDING"
	StatusPublished EntryStatus = "PUBLISHED"
	StatusFailed    EntryStatus = "FAILED"
)

// Entry is one domain event awaiting delivery. It is written by the same
// transaction that commits the aggregate state change it describes, then
// delivered asynchronously by the Dispatcher. RetryCount only ever grows.
type Entry struct {
	EntryID      string
	Event        events.Event
	Status       EntryStatus
	RetryCount   int
	FailedReason string
	// NextRetryAt is an ISO-8601 timestamp; empty means eligible now.
	NextRetryAt string
}

// Store is the durable outbox table. FetchPending returns entries awaiting
// delivery (PENDING, or FAILED with their retry time reached) in a
// deterministic order by entry id. MarkFailed increments the retry count.
type Store interface {
	Enqueue(ctx context.Context, event events.Event) (Entry, error)
	FetchPending(ctx context.Context, limit int) ([]Entry, error)
	MarkPublished(ctx context.Context, entryID string) error
	MarkFailed(ctx context.Context, entryID string, reason string, nextRetryAt string) error
}

// Clock supplies the dispatcher's notion of now as an ISO-8601 string, so
// retry scheduling stays testable and store-comparable.
type Clock interface {
	NowIso() string
}

// UTCClock is the production clock.
type UTCClock struct{}

func (UTCClock) NowIso() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// ParseIso parses the ISO-8601 timestamps used on outbox entries.
func ParseIso(value string) (time.Time, error) {
	return time.Parse(time.RFC3339, value)
}
