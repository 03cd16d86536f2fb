package objects

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"portarium/app/db"
	"portarium/app/db/models"
	"portarium/app/events"
	"portarium/app/evidence"
	"portarium/app/outbox"
	"portarium/app/policy"
	domain "portarium/app/run"
	"portarium/app/run/states"
	"portarium/pkg/contextx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var setupOnce sync.Once

func setupDB(t *testing.T) {
	setupOnce.Do(func() {
		db.Reset()
		cfg := &db.Config{
			Connection:  "sqlite://:memory:",
			PoolSize:    5,
			IdleTimeout: 3600,
		}
		if err := db.Init(cfg); err != nil {
			t.Fatalf("init database: %s", err.Error())
		}
		if err := db.Migrate(); err != nil {
			t.Fatalf("migrate database: %s", err.Error())
		}
	})
}

func workspaceContext(workspaceID string) *contextx.Context {
	ctx := contextx.NewContext()
	ctx.Set("workspace_id", workspaceID)
	return ctx
}

type stubClock struct {
	now time.Time
}

func (c stubClock) NowIso() string {
	return c.now.UTC().Format(time.RFC3339)
}

func newRunFixture(t *testing.T, workspaceID string) *domain.Run {
	run, err := domain.NewRun(workspaceID, "wf-orders", "user-initiator", policy.TierAuto, "")
	require.NoError(t, err)
	return run
}

func TestRun_SaveAndQueryScopedToWorkspace(t *testing.T) {
	setupDB(t)
	asserter := assert.New(t)

	ctx := workspaceContext("ws-objects-1")
	run := newRunFixture(t, "ws-objects-1")

	err := CreateRun(ctx, run)
	if asserter.NoError(err) {
		loaded, err := QueryRunByID(ctx, run.RunID)
		if asserter.NoError(err) && asserter.NotNil(loaded) {
			asserter.Equal(run.RunID, loaded.ID)
			asserter.Equal(string(states.PENDING), loaded.Status)
			asserter.Equal(run.WorkspaceID, loaded.ToDomain().WorkspaceID)
		}

		// another workspace cannot see the run
		other, err := QueryRunByID(workspaceContext("ws-objects-other"), run.RunID)
		asserter.NoError(err)
		asserter.Nil(other)
	}
}

func TestRun_ToDomainRoundTrip(t *testing.T) {
	setupDB(t)
	asserter := assert.New(t)

	ctx := workspaceContext("ws-objects-roundtrip")
	run := newRunFixture(t, "ws-objects-roundtrip")
	run.StartedAt = run.CreatedAt

	require.NoError(t, CreateRun(ctx, run))
	loaded, err := QueryRunByID(ctx, run.RunID)
	require.NoError(t, err)
	require.NotNil(t, loaded)

	got := loaded.ToDomain()
	asserter.Equal(run.RunID, got.RunID)
	asserter.Equal(run.ExecutionTier, got.ExecutionTier)
	asserter.Equal(run.CreatedAt, got.CreatedAt)
	asserter.Equal(run.StartedAt, got.StartedAt)
	asserter.Empty(got.EndedAt)
}

func TestEvidence_AppendLoadVerifies(t *testing.T) {
	setupDB(t)
	asserter := assert.New(t)

	ctx := workspaceContext("ws-evidence-1")
	hasher := evidence.NewSHA256Hasher()

	first, err := evidence.Append(nil, evidence.Draft{Summary: "run agg-1 started"}, hasher)
	require.NoError(t, err)
	second, err := evidence.Append(&first, evidence.Draft{Summary: "run agg-1 succeeded"}, hasher)
	require.NoError(t, err)

	chain := []evidence.Entry{first, second}
	err = AppendEvidence(ctx, AggregateTypeRun, "agg-1", chain, 0)
	require.NoError(t, err)

	count, err := CountEvidence(ctx, AggregateTypeRun, "agg-1")
	if asserter.NoError(err) {
		asserter.Equal(2, count)
	}

	loaded, err := LoadEvidenceChain(ctx, AggregateTypeRun, "agg-1", hasher)
	if asserter.NoError(err) {
		asserter.Equal(chain, loaded)
	}
}

func TestEvidence_TamperedChainRefusedOnLoad(t *testing.T) {
	setupDB(t)
	asserter := assert.New(t)

	ctx := workspaceContext("ws-evidence-tamper")
	hasher := evidence.NewSHA256Hasher()

	first, err := evidence.Append(nil, evidence.Draft{Summary: "run agg-2 started"}, hasher)
	require.NoError(t, err)
	require.NoError(t, AppendEvidence(ctx, AggregateTypeRun, "agg-2", []evidence.Entry{first}, 0))

	// tamper with the persisted row behind the loader's back
	err = db.GetDBConnection().Model(&models.EvidenceRecord{}).
		Where("aggregate_id = ?", "agg-2").
		Update("summary", "run agg-2 never happened").Error
	require.NoError(t, err)

	_, err = LoadEvidenceChain(ctx, AggregateTypeRun, "agg-2", hasher)
	asserter.Error(err)

	var chainErr *ChainVerificationError
	if asserter.True(errors.As(err, &chainErr)) {
		asserter.Equal(AggregateTypeRun, chainErr.AggregateType)
		asserter.Equal("agg-2", chainErr.AggregateID)
		asserter.Equal(evidence.ReasonHashMismatch, chainErr.Result.Reason)
	}
}

func TestEvidence_DoubleSaveRefused(t *testing.T) {
	setupDB(t)
	asserter := assert.New(t)

	ctx := workspaceContext("ws-evidence-dup")
	record := NewEvidenceRecord()
	record.AggregateType = AggregateTypeRun
	record.AggregateID = "agg-3"
	record.Summary = "once only"
	record.HashSha256 = "deadbeef"

	require.NoError(t, record.Save(ctx))
	asserter.Error(record.Save(ctx))
}

func TestGormOutboxStore_EnqueueFetchPublish(t *testing.T) {
	setupDB(t)
	asserter := assert.New(t)

	store := NewGormOutboxStore("dispatcher-a", outbox.UTCClock{})
	ctx := context.Background()

	event := events.NewRunEvent(events.RunStarted, events.RunTransitionData{
		RunID:       "run-outbox-1",
		WorkspaceID: "ws-outbox-1",
		FromStatus:  string(states.PENDING),
		ToStatus:    string(states.RUNNING),
	})
	entry, err := store.Enqueue(ctx, event)
	require.NoError(t, err)
	asserter.Equal(outbox.StatusPending, entry.Status)
	asserter.Equal(event.ID, entry.EntryID)

	pending, err := store.FetchPending(ctx, 10)
	require.NoError(t, err)
	if asserter.Len(pending, 1) {
		asserter.Equal(event.ID, pending[0].EntryID)
		asserter.Equal(event.Type, pending[0].Event.Type)
		asserter.Equal("run-outbox-1", pending[0].Event.Data["runId"])
	}

	require.NoError(t, store.MarkPublished(ctx, event.ID))
	pending, err = store.FetchPending(ctx, 10)
	require.NoError(t, err)
	asserter.Empty(pending)
}

func TestGormOutboxStore_MarkFailedSchedulesRetry(t *testing.T) {
	setupDB(t)
	asserter := assert.New(t)

	store := NewGormOutboxStore("dispatcher-a", outbox.UTCClock{})
	ctx := context.Background()

	event := events.NewRunEvent(events.RunFailed, events.RunTransitionData{
		RunID:       "run-outbox-2",
		WorkspaceID: "ws-outbox-2",
		FromStatus:  string(states.RUNNING),
		ToStatus:    string(states.FAILED),
	})
	_, err := store.Enqueue(ctx, event)
	require.NoError(t, err)

	future := time.Now().UTC().Add(time.Hour).Format(time.RFC3339)
	require.NoError(t, store.MarkFailed(ctx, event.ID, "broker unreachable", future))

	// not due yet
	pending, err := store.FetchPending(ctx, 10)
	require.NoError(t, err)
	for _, entry := range pending {
		asserter.NotEqual(event.ID, entry.EntryID)
	}

	// due once the retry time is in the past
	past := time.Now().UTC().Add(-time.Minute).Format(time.RFC3339)
	require.NoError(t, store.MarkFailed(ctx, event.ID, "broker unreachable", past))

	pending, err = store.FetchPending(ctx, 10)
	require.NoError(t, err)
	found := false
	for _, entry := range pending {
		if entry.EntryID == event.ID {
			found = true
			asserter.Equal(outbox.StatusFailed, entry.Status)
			asserter.Equal(2, entry.RetryCount)
			asserter.Equal("broker unreachable", entry.FailedReason)
		}
	}
	asserter.True(found, "retry-due entry must be fetchable")
}

// A late failure report from a stale dispatcher must not demote a PUBLISHED
// row back to FAILED; published entries are immutable.
func TestGormOutboxStore_PublishedEntryCannotBeDemoted(t *testing.T) {
	setupDB(t)
	asserter := assert.New(t)

	store := NewGormOutboxStore("dispatcher-a", outbox.UTCClock{})
	ctx := context.Background()

	event := events.NewRunEvent(events.RunStarted, events.RunTransitionData{
		RunID:       "run-outbox-4",
		WorkspaceID: "ws-outbox-4",
		FromStatus:  string(states.PENDING),
		ToStatus:    string(states.RUNNING),
	})
	_, err := store.Enqueue(ctx, event)
	require.NoError(t, err)
	require.NoError(t, store.MarkPublished(ctx, event.ID))

	past := time.Now().UTC().Add(-time.Minute).Format(time.RFC3339)
	require.NoError(t, store.MarkFailed(ctx, event.ID, "late failure report", past))

	var row models.OutboxEntry
	require.NoError(t, db.GetDBConnection().Where("id = ?", event.ID).First(&row).Error)
	asserter.Equal(string(outbox.StatusPublished), row.Status)
	asserter.Equal(0, row.RetryCount)
	asserter.Empty(row.FailReason)
}

func TestGormOutboxStore_LeaseKeepsInstancesApart(t *testing.T) {
	setupDB(t)
	asserter := assert.New(t)

	ctx := context.Background()
	now := time.Now().UTC()
	storeA := NewGormOutboxStore("dispatcher-a", stubClock{now: now})
	storeB := NewGormOutboxStore("dispatcher-b", stubClock{now: now})

	event := events.NewRunEvent(events.RunSucceeded, events.RunTransitionData{
		RunID:       "run-outbox-3",
		WorkspaceID: "ws-outbox-3",
		FromStatus:  string(states.RUNNING),
		ToStatus:    string(states.SUCCEEDED),
	})
	_, err := storeA.Enqueue(ctx, event)
	require.NoError(t, err)

	pending, err := storeA.FetchPending(ctx, 10)
	require.NoError(t, err)
	claimed := false
	for _, entry := range pending {
		if entry.EntryID == event.ID {
			claimed = true
		}
	}
	require.True(t, claimed, "owning instance must claim the entry")

	// a second instance must not see the entry while the lease is live
	pending, err = storeB.FetchPending(ctx, 10)
	require.NoError(t, err)
	for _, entry := range pending {
		asserter.NotEqual(event.ID, entry.EntryID)
	}

	// an expired lease is up for grabs
	storeBLater := NewGormOutboxStore("dispatcher-b", stubClock{now: now.Add(3 * time.Minute)})
	pending, err = storeBLater.FetchPending(ctx, 10)
	require.NoError(t, err)
	taken := false
	for _, entry := range pending {
		if entry.EntryID == event.ID {
			taken = true
		}
	}
	asserter.True(taken, "expired lease must be claimable by another instance")
}

func TestTransitionRun_AppliedCommitsRowChainAndOutbox(t *testing.T) {
	setupDB(t)
	asserter := assert.New(t)

	ctx := workspaceContext("ws-commit-1")
	run := newRunFixture(t, "ws-commit-1")
	require.NoError(t, CreateRun(ctx, run))

	result, err := TransitionRun(ctx, run.RunID, domain.TransitionRequest{
		Target:      states.RUNNING,
		Environment: policy.EnvDev,
		RequestedBy: "user-initiator",
	}, nil, nil)
	require.NoError(t, err)
	require.Equal(t, domain.ResultApplied, result.Kind)

	loaded, err := QueryRunByID(ctx, run.RunID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	asserter.Equal(string(states.RUNNING), loaded.Status)
	asserter.False(loaded.StartedAt.IsZero())

	chain, err := LoadEvidenceChain(ctx, AggregateTypeRun, run.RunID, evidence.NewSHA256Hasher())
	require.NoError(t, err)
	if asserter.Len(chain, 1) {
		asserter.Equal(result.Evidence.HashSha256, chain[0].HashSha256)
	}

	var row models.OutboxEntry
	err = db.GetDBConnection().Where("id = ?", result.Event.ID).First(&row).Error
	if asserter.NoError(err) {
		asserter.Equal(string(outbox.StatusPending), row.Status)
	}
}

func TestTransitionRun_ParksAndPersistsApprovalGate(t *testing.T) {
	setupDB(t)
	asserter := assert.New(t)

	ctx := workspaceContext("ws-commit-2")
	run, err := domain.NewRun("ws-commit-2", "wf-payouts", "user-initiator", policy.TierHumanApprove, "")
	require.NoError(t, err)
	run.Status = states.RUNNING
	run.StartedAt = run.CreatedAt
	require.NoError(t, CreateRun(ctx, run))

	result, err := TransitionRun(ctx, run.RunID, domain.TransitionRequest{
		Target:      states.SUCCEEDED,
		Environment: policy.EnvProd,
		Workflow:    policy.WorkflowDefinition{ID: "wf-payouts", Name: "payouts", ExecutionTier: policy.TierHumanApprove},
		RequestedBy: "user-initiator",
	}, nil, nil)
	require.NoError(t, err)
	require.Equal(t, domain.ResultAwaitingApproval, result.Kind)
	asserter.True(result.Parked)

	loaded, err := QueryRunByID(ctx, run.RunID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	asserter.Equal(string(states.WAITING_FOR_APPROVAL), loaded.Status)
	asserter.True(loaded.EndedAt.IsZero())

	chain, err := LoadEvidenceChain(ctx, AggregateTypeRun, run.RunID, evidence.NewSHA256Hasher())
	require.NoError(t, err)
	asserter.Len(chain, 1)
}

func TestTransitionRun_RejectedMutatesNothing(t *testing.T) {
	setupDB(t)
	asserter := assert.New(t)

	ctx := workspaceContext("ws-commit-3")
	run := newRunFixture(t, "ws-commit-3")
	require.NoError(t, CreateRun(ctx, run))

	result, err := TransitionRun(ctx, run.RunID, domain.TransitionRequest{
		Target:      states.SUCCEEDED,
		Environment: policy.EnvDev,
		RequestedBy: "user-initiator",
	}, nil, nil)
	require.NoError(t, err)
	asserter.Equal(domain.ResultRejected, result.Kind)
	asserter.Error(result.Err)

	loaded, err := QueryRunByID(ctx, run.RunID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	asserter.Equal(string(states.PENDING), loaded.Status)

	count, err := CountEvidence(ctx, AggregateTypeRun, run.RunID)
	require.NoError(t, err)
	asserter.Zero(count)
}

func TestWithNamedLock_ReleasesOnCallbackError(t *testing.T) {
	setupDB(t)
	asserter := assert.New(t)

	ctx := workspaceContext("ws-lock-1")
	wantErr := errors.New("boom")

	err := WithNamedLock(ctx, "lock-objects-test", func() error {
		return wantErr
	})
	asserter.ErrorIs(err, wantErr)

	// the lock is gone, a second holder can take it
	err = WithNamedLock(ctx, "lock-objects-test", func() error {
		return nil
	})
	asserter.NoError(err)
}
