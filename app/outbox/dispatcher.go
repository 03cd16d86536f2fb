package outbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"portarium/app/events"
	"portarium/pkg/log"
)

var defaultBackoff = []time.Duration{
	5 * time.Second,
	30 * time.Second,
	120 * time.Second,
	600 * time.Second,
}

// Config tunes a Dispatcher. Zero values fall back to the defaults below.
type Config struct {
	// BatchSize limits how many entries one sweep picks up.
	BatchSize int
	// Backoff is indexed by an entry's retry count and capped at its last
	// element.
	Backoff []time.Duration
	// MaxRetries is where the continuous loop stops retrying an entry.
	MaxRetries int
	// PollInterval is the continuous loop's sweep period.
	PollInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if len(c.Backoff) == 0 {
		c.Backoff = defaultBackoff
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 10
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	return c
}

// Report counts what one sweep did.
type Report struct {
	Published int
	Failed    int
}

// Dispatcher sweeps the outbox store and publishes pending entries. Delivery
// is at-least-once: a publish that succeeded but whose MarkPublished write was
// lost will be delivered again, and two dispatcher instances sharing a store
// without claim support may double-deliver. Consumers must deduplicate on the
// event's natural keys.
//
// The dispatcher does not serialize its own sweeps; callers invoking Sweep or
// PollOnce concurrently get concurrent sweeps.
type Dispatcher struct {
	store     Store
	publisher events.Publisher
	clock     Clock
	config    Config

	loopMu   sync.Mutex
	stopCh   chan struct{}
	loopDone sync.WaitGroup
}

func NewDispatcher(store Store, publisher events.Publisher, clock Clock, config Config) *Dispatcher {
	if clock == nil {
		clock = UTCClock{}
	}
	return &Dispatcher{
		store:     store,
		publisher: publisher,
		clock:     clock,
		config:    config.withDefaults(),
	}
}

func (d *Dispatcher) backoffFor(retryCount int) time.Duration {
	idx := retryCount
	if idx >= len(d.config.Backoff) {
		idx = len(d.config.Backoff) - 1
	}
	return d.config.Backoff[idx]
}

// Sweep is the one-shot variant for callers driving their own scheduler. It
// processes every fetched entry regardless of retry count, so an operator
// sweep can still drain entries the continuous loop has given up on.
func (d *Dispatcher) Sweep(ctx context.Context) (Report, error) {
	return d.sweep(ctx, false)
}

// PollOnce is one cycle of the continuous loop. Unlike Sweep it skips entries
// at or beyond MaxRetries; those stay FAILED until a dead-letter process or an
// operator sweep picks them up.
func (d *Dispatcher) PollOnce(ctx context.Context) (Report, error) {
	return d.sweep(ctx, true)
}

func (d *Dispatcher) sweep(ctx context.Context, skipExhausted bool) (Report, error) {
	report := Report{}

	entries, err := d.store.FetchPending(ctx, d.config.BatchSize)
	if err != nil {
		return report, fmt.Errorf("fetch pending outbox entries failed: %s", err.Error())
	}

	now, err := ParseIso(d.clock.NowIso())
	if err != nil {
		return report, fmt.Errorf("outbox clock produced a bad timestamp: %s", err.Error())
	}

	for _, entry := range entries {
		if skipExhausted && entry.RetryCount >= d.config.MaxRetries {
			log.Warnf(nil, "outbox entry %s exhausted %d retries, leaving for dead-letter handling", entry.EntryID, entry.RetryCount)
			continue
		}

		// Publish failures are isolated per entry; one bad event must not
		// block the rest of the batch.
		if err := d.publisher.Publish(ctx, entry.Event); err != nil {
			nextRetry := now.Add(d.backoffFor(entry.RetryCount)).Format(time.RFC3339)
			if markErr := d.store.MarkFailed(ctx, entry.EntryID, err.Error(), nextRetry); markErr != nil {
				log.Errorf(nil, "mark outbox entry %s failed error: %s", entry.EntryID, markErr.Error())
			}
			report.Failed++
			continue
		}

		if err := d.store.MarkPublished(ctx, entry.EntryID); err != nil {
			log.Errorf(nil, "mark outbox entry %s published error: %s", entry.EntryID, err.Error())
			report.Failed++
			continue
		}
		report.Published++
	}

	return report, nil
}

// Start launches the self-driving loop. Sweep-cycle errors are logged and
// swallowed so one bad cycle cannot kill the loop.
func (d *Dispatcher) Start() {
	d.loopMu.Lock()
	defer d.loopMu.Unlock()

	if d.stopCh != nil {
		return
	}
	stopCh := make(chan struct{})
	d.stopCh = stopCh

	d.loopDone.Add(1)
	go func() {
		defer d.loopDone.Done()

		ticker := time.NewTicker(d.config.PollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-stopCh:
				return
			case <-ticker.C:
				report, err := d.PollOnce(context.Background())
				if err != nil {
					log.Warnf(nil, "outbox poll cycle failed, error: %s", err.Error())
					continue
				}
				if report.Published > 0 || report.Failed > 0 {
					log.Debugf(nil, "outbox poll cycle published=%d failed=%d", report.Published, report.Failed)
				}
			}
		}
	}()
}

// Stop cancels the loop timer and waits for any in-flight sweep to finish.
func (d *Dispatcher) Stop() {
	d.loopMu.Lock()
	stopCh := d.stopCh
	d.stopCh = nil
	d.loopMu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	d.loopDone.Wait()
}
