package outbox

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"portarium/app/events"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for local execution and tests. It has an
// explicit lifecycle: construct with NewMemoryStore, wipe with Reset.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
	clock   Clock
}

func NewMemoryStore(clock Clock) *MemoryStore {
	if clock == nil {
		clock = UTCClock{}
	}
	return &MemoryStore{
		entries: make(map[string]Entry),
		clock:   clock,
	}
}

func (s *MemoryStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]Entry)
}

func (s *MemoryStore) Enqueue(ctx context.Context, event events.Event) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := Entry{
		EntryID: uuid.NewString(),
		Event:   event,
		Status:  StatusPending,
	}
	s.entries[entry.EntryID] = entry
	return entry, nil
}

func (s *MemoryStore) FetchPending(ctx context.Context, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now, err := ParseIso(s.clock.NowIso())
	if err != nil {
		return nil, err
	}

	var pending []Entry
	for _, entry := range s.entries {
		if entry.Status == StatusPublished {
			continue
		}
		if entry.NextRetryAt != "" {
			retryAt, err := ParseIso(entry.NextRetryAt)
			if err != nil {
				return nil, err
			}
			if retryAt.After(now) {
				continue
			}
		}
		pending = append(pending, entry)
	}

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].EntryID < pending[j].EntryID
	})
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (s *MemoryStore) MarkPublished(ctx context.Context, entryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[entryID]
	if !ok {
		return fmt.Errorf("outbox entry %s not found", entryID)
	}
	entry.Status = StatusPublished
	entry.FailedReason = ""
	entry.NextRetryAt = ""
	s.entries[entryID] = entry
	return nil
}

func (s *MemoryStore) MarkFailed(ctx context.Context, entryID string, reason string, nextRetryAt string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[entryID]
	if !ok {
		return fmt.Errorf("outbox entry %s not found", entryID)
	}
	if entry.Status == StatusPublished {
		// published entries are immutable; drop late failure reports
		return nil
	}
	entry.Status = StatusFailed
	entry.RetryCount++
	entry.FailedReason = reason
	entry.NextRetryAt = nextRetryAt
	s.entries[entryID] = entry
	return nil
}

// Get returns a stored entry, mainly for inspection in tests.
func (s *MemoryStore) Get(entryID string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[entryID]
	return entry, ok
}
