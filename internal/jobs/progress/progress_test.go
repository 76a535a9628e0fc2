package progress

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/personaforge-backend/internal/domain"
	"github.com/yungbote/personaforge-backend/internal/platform/logger"
)

func TestTrackerLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	company := &domain.Company{ID: uuid.New(), Code: "ACME"}
	runID := uuid.New()
	tr := NewTracker(logger.Nop(), store, runID, company, 3)

	tr.Start(ctx)
	tr.Step(ctx, 1, domain.StagePersonas)
	tr.Persona(ctx, "Jane Doe (CEO)")

	snap, err := store.Get(ctx, runID)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, domain.RunStatusRunning, snap.Status)
	assert.Equal(t, 1, snap.CurrentStepIndex)
	assert.Equal(t, 3, snap.TotalSteps)
	assert.Equal(t, "personas", snap.CurrentStage)
	assert.Equal(t, "Jane Doe (CEO)", snap.CurrentPersonaLabel)

	tr.Step(ctx, 2, domain.StageBiographies)
	assert.Empty(t, tr.Snapshot().CurrentPersonaLabel)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	tr.Finish(canceled, domain.RunStatusStopped, "context canceled")
	snap, err = store.Get(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusStopped, snap.Status)
	assert.True(t, snap.Terminal())
}

func TestMemoryStoreKeysByRun(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	a := &domain.Company{ID: uuid.New(), Code: "A"}
	b := &domain.Company{ID: uuid.New(), Code: "B"}

	runA, runB := uuid.New(), uuid.New()
	ta := NewTracker(logger.Nop(), store, runA, a, 11)
	tb := NewTracker(logger.Nop(), store, runB, b, 11)
	ta.Start(ctx)
	tb.Start(ctx)
	ta.Step(ctx, 4, domain.StageTechSpecs)
	tb.Step(ctx, 9, domain.StageAvatarImages)

	sa, err := store.Get(ctx, runA)
	require.NoError(t, err)
	sb, err := store.Get(ctx, runB)
	require.NoError(t, err)
	assert.Equal(t, 4, sa.CurrentStepIndex)
	assert.Equal(t, 9, sb.CurrentStepIndex)

	latest, err := store.LatestForCompany(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, runB, latest.RunID)

	missing, err := store.Get(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryStoreExpiresSnapshots(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStoreWithTTL(time.Hour)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }

	company := uuid.New()
	old := Snapshot{RunID: uuid.New(), CompanyID: company, Status: domain.RunStatusCompleted}
	require.NoError(t, store.Put(ctx, old))

	clock = clock.Add(30 * time.Minute)
	got, err := store.Get(ctx, old.RunID)
	require.NoError(t, err)
	require.NotNil(t, got)

	clock = clock.Add(31 * time.Minute)
	got, err = store.Get(ctx, old.RunID)
	require.NoError(t, err)
	assert.Nil(t, got, "expired snapshot is not served")
	latest, err := store.LatestForCompany(ctx, company)
	require.NoError(t, err)
	assert.Nil(t, latest)

	fresh := Snapshot{RunID: uuid.New(), CompanyID: uuid.New(), Status: domain.RunStatusRunning}
	require.NoError(t, store.Put(ctx, fresh))
	assert.Equal(t, 1, store.Len(), "put evicts expired snapshots")

	// A later write extends the snapshot's lifetime.
	clock = clock.Add(50 * time.Minute)
	fresh.CurrentStepIndex = 2
	require.NoError(t, store.Put(ctx, fresh))
	clock = clock.Add(50 * time.Minute)
	got, err = store.Get(ctx, fresh.RunID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2, got.CurrentStepIndex)
}

func TestNewMemoryStoreWithTTLDefaults(t *testing.T) {
	assert.Equal(t, defaultTTL, NewMemoryStore().ttl)
	assert.Equal(t, defaultTTL, NewMemoryStoreWithTTL(0).ttl)
	assert.Equal(t, time.Minute, NewMemoryStoreWithTTL(time.Minute).ttl)
}

func TestPollStopsOnTerminalStatus(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	fetch := func(ctx context.Context) (*Snapshot, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		switch {
		case calls == 1:
			return nil, nil
		case calls < 4:
			return &Snapshot{Status: domain.RunStatusRunning, CurrentStepIndex: calls}, nil
		default:
			return &Snapshot{Status: domain.RunStatusCompleted, CurrentStepIndex: calls}, nil
		}
	}
	var seen []int
	final, err := Poll(context.Background(), fetch, time.Millisecond, func(s Snapshot) { seen = append(seen, s.CurrentStepIndex) })
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, final.Status)
	assert.Equal(t, []int{2, 3, 4}, seen)
}

func TestPollPropagatesErrorsAndCancellation(t *testing.T) {
	boom := errors.New("boom")
	_, err := Poll(context.Background(), func(context.Context) (*Snapshot, error) { return nil, boom }, time.Millisecond, nil)
	require.ErrorIs(t, err, boom)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = Poll(ctx, func(context.Context) (*Snapshot, error) {
		return &Snapshot{Status: domain.RunStatusRunning}, nil
	}, time.Millisecond, nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	store, err := NewRedisStore(ctx, logger.Nop(), RedisConfig{Addr: addr, Prefix: "test:" + uuid.NewString(), TTL: time.Minute})
	require.NoError(t, err)
	defer store.Close()

	company := &domain.Company{ID: uuid.New(), Code: "ACME"}
	runID := uuid.New()
	tr := NewTracker(logger.Nop(), store, runID, company, 2)
	tr.Start(ctx)
	tr.Step(ctx, 2, domain.StageAudit)

	snap, err := store.Get(ctx, runID)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "audit", snap.CurrentStage)

	latest, err := store.LatestForCompany(ctx, company.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, runID, latest.RunID)

	missing, err := store.Get(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestNewRedisStoreRequiresAddr(t *testing.T) {
	_, err := NewRedisStore(context.Background(), logger.Nop(), RedisConfig{})
	require.Error(t, err)
}
