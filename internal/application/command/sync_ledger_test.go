package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oqu-hub/oqu-progress-engine/internal/domain/progress"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/shared"
	"github.com/oqu-hub/oqu-progress-engine/pkg/keyedlock"
	"github.com/oqu-hub/oqu-progress-engine/pkg/logger"
	"github.com/oqu-hub/oqu-progress-engine/pkg/retry"
)

func fastSyncConfig() SyncConfig {
	cfg := DefaultSyncConfig()
	cfg.Retry.InitialDelay = time.Millisecond
	cfg.Retry.MaxDelay = 2 * time.Millisecond
	return cfg
}

func newSyncFixture(t *testing.T, remote *fakeRemote) (*SyncCoordinator, *memLedgerRepo, *capturePublisher) {
	t.Helper()
	ledgers := newMemLedgerRepo()
	published := &capturePublisher{}
	coordinator := NewSyncCoordinator(
		ledgers, remote, keyedlock.New(), published, fastSyncConfig(), logger.Nop(),
	)
	return coordinator, ledgers, published
}

func seedLedger(t *testing.T, repo *memLedgerRepo, total, synced progress.XP) {
	t.Helper()
	ledger, err := progress.NewLedger("user-1", "Aruzhan")
	require.NoError(t, err)
	ledger.TotalXP = total
	ledger.SyncedXP = synced
	require.NoError(t, repo.Save(context.Background(), ledger))
}

func TestSync_PushesUnackedDelta(t *testing.T) {
	remote := &fakeRemote{remoteTotal: 0}
	coordinator, ledgers, _ := newSyncFixture(t, remote)
	seedLedger(t, ledgers, 100, 0)

	result, err := coordinator.Handle(context.Background(), SyncLedgerCommand{UserID: "user-1"})
	require.NoError(t, err)

	assert.Equal(t, progress.XP(100), result.MergedTotal)
	assert.Equal(t, progress.XP(0), result.AppliedDelta)
	assert.Equal(t, progress.XP(100), result.PushedDelta)

	saved, _ := ledgers.FindByUserID(context.Background(), "user-1")
	assert.Equal(t, progress.XP(100), saved.SyncedXP)
	assert.Equal(t, progress.XP(0), saved.UnsyncedDelta())
}

func TestSync_ConflictNeverDoubleCounts(t *testing.T) {
	// Local: 500 total, 460 acknowledged, 40 unacked.
	// Server: already shows 500 (a previous push landed but the ack was
	// lost). The server recognizes the delta and answers 500.
	remote := &fakeRemote{remoteTotal: 500, pushReturns: 500}
	coordinator, ledgers, _ := newSyncFixture(t, remote)
	seedLedger(t, ledgers, 500, 460)

	result, err := coordinator.Handle(context.Background(), SyncLedgerCommand{UserID: "user-1"})
	require.NoError(t, err)

	// Converged at 500, not 540: the unacked delta was not re-added.
	assert.Equal(t, progress.XP(500), result.MergedTotal)
	assert.Equal(t, progress.XP(0), result.AppliedDelta)
	assert.Equal(t, progress.XP(40), result.PushedDelta)

	saved, _ := ledgers.FindByUserID(context.Background(), "user-1")
	assert.Equal(t, progress.XP(500), saved.TotalXP)
	assert.Equal(t, progress.XP(0), saved.UnsyncedDelta())
}

func TestSync_ServerAheadPlusUnackedDelta(t *testing.T) {
	// Local: 500 total, 460 acknowledged, 40 unacked.
	// Server: 520, earned on another device.
	remote := &fakeRemote{remoteTotal: 520}
	coordinator, ledgers, _ := newSyncFixture(t, remote)
	seedLedger(t, ledgers, 500, 460)

	result, err := coordinator.Handle(context.Background(), SyncLedgerCommand{UserID: "user-1"})
	require.NoError(t, err)

	// Merged 520 plus the 40 unacked on top: 560. The 20 XP the server
	// contributed must not be folded into the pushed delta (that would
	// converge at 580).
	assert.Equal(t, progress.XP(560), result.MergedTotal)
	assert.Equal(t, progress.XP(20), result.AppliedDelta)
	assert.Equal(t, progress.XP(40), result.PushedDelta)
	assert.Equal(t, progress.XP(560), remote.remoteTotal)

	saved, _ := ledgers.FindByUserID(context.Background(), "user-1")
	assert.Equal(t, progress.XP(560), saved.TotalXP)
	assert.Equal(t, progress.XP(560), saved.SyncedXP)
	assert.Equal(t, progress.XP(0), saved.UnsyncedDelta())
}

func TestSync_ServerAheadMergesDown(t *testing.T) {
	remote := &fakeRemote{remoteTotal: 450}
	coordinator, ledgers, published := newSyncFixture(t, remote)
	seedLedger(t, ledgers, 300, 300)

	result, err := coordinator.Handle(context.Background(), SyncLedgerCommand{UserID: "user-1"})
	require.NoError(t, err)

	assert.Equal(t, progress.XP(450), result.MergedTotal)
	assert.Equal(t, progress.XP(150), result.AppliedDelta)
	assert.Equal(t, progress.XP(0), result.PushedDelta)
	assert.Equal(t, 0, remote.pushCalls, "nothing unacked, nothing pushed")

	assert.Len(t, published.byType(shared.EventSyncMerged), 1)
}

func TestSync_RetriesRetryableFetch(t *testing.T) {
	remote := &fakeRemote{fetchErr: shared.ErrRemoteTimeout}
	coordinator, ledgers, published := newSyncFixture(t, remote)
	seedLedger(t, ledgers, 100, 0)

	_, err := coordinator.Handle(context.Background(), SyncLedgerCommand{UserID: "user-1"})
	require.Error(t, err)

	// DefaultSyncConfig allows 4 attempts.
	assert.Equal(t, 4, remote.fetchCalls)
	assert.Len(t, published.byType(shared.EventSyncFailed), 1)

	// The ledger was never touched.
	saved, _ := ledgers.FindByUserID(context.Background(), "user-1")
	assert.Equal(t, progress.XP(0), saved.SyncedXP)
}

func TestSync_PermanentErrorFailsFast(t *testing.T) {
	remote := &fakeRemote{fetchErr: retry.Permanent(shared.ErrRemoteUnauth)}
	coordinator, ledgers, _ := newSyncFixture(t, remote)
	seedLedger(t, ledgers, 100, 0)

	_, err := coordinator.Handle(context.Background(), SyncLedgerCommand{UserID: "user-1"})
	require.Error(t, err)
	assert.Equal(t, 1, remote.fetchCalls)
}

func TestSync_InFlightGuard(t *testing.T) {
	remote := &fakeRemote{}
	coordinator, ledgers, _ := newSyncFixture(t, remote)
	seedLedger(t, ledgers, 100, 0)

	require.True(t, coordinator.acquire("user-1"))
	defer coordinator.release("user-1")

	_, err := coordinator.Handle(context.Background(), SyncLedgerCommand{UserID: "user-1"})
	assert.ErrorIs(t, err, shared.ErrSyncInFlight)

	// Other users are unaffected.
	seedLedger2, err2 := progress.NewLedger("user-2", "Madi")
	require.NoError(t, err2)
	require.NoError(t, ledgers.Save(context.Background(), seedLedger2))
	_, err = coordinator.Handle(context.Background(), SyncLedgerCommand{UserID: "user-2"})
	assert.NoError(t, err)
}

func TestSync_CancelledBeforeCommit(t *testing.T) {
	remote := &fakeRemote{remoteTotal: 200}
	coordinator, ledgers, _ := newSyncFixture(t, remote)
	seedLedger(t, ledgers, 100, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := coordinator.Handle(ctx, SyncLedgerCommand{UserID: "user-1"})
	require.Error(t, err)

	saved, _ := ledgers.FindByUserID(context.Background(), "user-1")
	assert.Equal(t, progress.XP(100), saved.TotalXP)
	assert.Equal(t, progress.XP(0), saved.SyncedXP)
}

func TestResetLedger(t *testing.T) {
	ledgers := newMemLedgerRepo()
	events := newMemEventRepo()
	goals := newMemGoalRepo()
	published := &capturePublisher{}
	seedLedger(t, ledgers, 700, 700)

	handler := NewResetLedgerHandler(ledgers, events, goals, keyedlock.New(), published, logger.Nop())

	err := handler.Handle(context.Background(), ResetLedgerCommand{UserID: "user-1", Reason: "account deletion"})
	require.NoError(t, err)

	saved, _ := ledgers.FindByUserID(context.Background(), "user-1")
	assert.Equal(t, progress.XP(0), saved.TotalXP)
	assert.Empty(t, saved.Badges)
	assert.Len(t, published.byType(shared.EventLedgerReset), 1)

	// Resetting a missing user reports not found.
	err = handler.Handle(context.Background(), ResetLedgerCommand{UserID: "ghost"})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
