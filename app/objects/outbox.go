package objects

import (
	"context"
	"encoding/json"
	"time"

	"portarium/app/db"
	"portarium/app/db/models"
	"portarium/app/events"
	"portarium/app/outbox"
	"portarium/pkg/contextx"

	"gorm.io/gorm"
)

// leaseTTL bounds how long a dispatcher instance may sit on claimed entries.
// A crashed instance's claims expire and another instance picks them up.
const leaseTTL = 2 * time.Minute

type OutboxEntry struct {
	*models.OutboxEntry
	ContextObject
	PersistentObject
}

func (o *OutboxEntry) ToEntry() (outbox.Entry, error) {
	var event events.Event
	if err := json.Unmarshal([]byte(o.Payload), &event); err != nil {
		return outbox.Entry{}, err
	}
	return outbox.Entry{
		EntryID:      o.ID,
		Event:        event,
		Status:       outbox.EntryStatus(o.Status),
		RetryCount:   o.RetryCount,
		FailedReason: o.FailReason,
		NextRetryAt:  o.NextRetryAt,
	}, nil
}

func (o *OutboxEntry) Save(ctx *contextx.Context) error {
	if !o.IsCreated() {
		o.CreatedAt = time.Now().UTC()
		o.UpdatedAt = o.CreatedAt
	} else {
		o.UpdatedAt = time.Now().UTC()
	}

	if err := o.DB(ctx).Save(o.OutboxEntry).Error; err != nil {
		return err
	}
	o.SetContext(ctx)
	o.SetCreated()
	return nil
}

func NewOutboxEntry() *OutboxEntry {
	return &OutboxEntry{OutboxEntry: &models.OutboxEntry{}}
}

// EnqueueOutbox writes an event into the outbox inside the caller's
// transaction. This is the transactional half of the outbox pattern: the
// entry commits or rolls back together with the state change it describes.
func EnqueueOutbox(ctx *contextx.Context, event events.Event) (*OutboxEntry, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	entry := NewOutboxEntry()
	entry.ID = event.ID
	entry.Payload = string(payload)
	entry.Status = string(outbox.StatusPending)
	if err := entry.Save(ctx); err != nil {
		return nil, err
	}
	return entry, nil
}

// GormOutboxStore is the durable outbox.Store. Each dispatcher instance
// claims the entries it fetches by writing its instance id and a lease
// timestamp, so concurrent dispatchers never deliver the same entry while a
// lease is live.
type GormOutboxStore struct {
	instanceID string
	clock      outbox.Clock
}

func NewGormOutboxStore(instanceID string, clock outbox.Clock) *GormOutboxStore {
	if clock == nil {
		clock = outbox.UTCClock{}
	}
	return &GormOutboxStore{instanceID: instanceID, clock: clock}
}

func (s *GormOutboxStore) conn(ctx context.Context) *gorm.DB {
	return db.GetDBConnection().WithContext(ctx)
}

func (s *GormOutboxStore) Enqueue(ctx context.Context, event events.Event) (outbox.Entry, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return outbox.Entry{}, err
	}

	now := time.Now().UTC()
	row := &models.OutboxEntry{
		ID:        event.ID,
		Payload:   string(payload),
		Status:    string(outbox.StatusPending),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.conn(ctx).Create(row).Error; err != nil {
		return outbox.Entry{}, err
	}
	return (&OutboxEntry{OutboxEntry: row}).ToEntry()
}

// FetchPending claims and returns up to limit deliverable entries: PENDING
// ones, and FAILED ones whose retry time has passed, ordered by id. Entries
// leased to another live instance are invisible.
func (s *GormOutboxStore) FetchPending(ctx context.Context, limit int) ([]outbox.Entry, error) {
	now, err := outbox.ParseIso(s.clock.NowIso())
	if err != nil {
		return nil, err
	}
	leaseFloor := now.Add(-leaseTTL)

	var rows []*models.OutboxEntry
	query := s.conn(ctx).Model(&models.OutboxEntry{}).
		Where("status <> ?", string(outbox.StatusPublished)).
		Where("next_retry_at = '' OR next_retry_at <= ?", now.Format(time.RFC3339)).
		Where("claimed_by = '' OR claimed_by = ? OR claimed_at < ?", s.instanceID, leaseFloor).
		Order("id").
		Limit(limit)
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	var entries []outbox.Entry
	for _, row := range rows {
		claim := s.conn(ctx).Model(&models.OutboxEntry{}).
			Where("id = ?", row.ID).
			Where("claimed_by = '' OR claimed_by = ? OR claimed_at < ?", s.instanceID, leaseFloor).
			Updates(map[string]interface{}{
				"claimed_by": s.instanceID,
				"claimed_at": now,
				"updated_at": now,
			})
		if claim.Error != nil {
			return nil, claim.Error
		}
		if claim.RowsAffected == 0 {
			// Another instance got there first.
			continue
		}

		entry, err := (&OutboxEntry{OutboxEntry: row}).ToEntry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *GormOutboxStore) MarkPublished(ctx context.Context, entryID string) error {
	return s.conn(ctx).Model(&models.OutboxEntry{}).
		Where("id = ?", entryID).
		Updates(map[string]interface{}{
			"status":     string(outbox.StatusPublished),
			"claimed_by": "",
			"updated_at": time.Now().UTC(),
		}).Error
}

// MarkFailed records a delivery failure. Published entries are immutable, so
// a late failure report from a stale dispatcher cannot demote one.
func (s *GormOutboxStore) MarkFailed(ctx context.Context, entryID string, reason string, nextRetryAt string) error {
	return s.conn(ctx).Model(&models.OutboxEntry{}).
		Where("id = ?", entryID).
		Where("status <> ?", string(outbox.StatusPublished)).
		Updates(map[string]interface{}{
			"status":        string(outbox.StatusFailed),
			"fail_reason":   reason,
			"next_retry_at": nextRetryAt,
			"retry_count":   gorm.Expr("retry_count + 1"),
			"claimed_by":    "",
			"updated_at":    time.Now().UTC(),
		}).Error
}
