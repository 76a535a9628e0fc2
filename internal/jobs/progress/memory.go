package progress

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a process-local Store. Snapshots expire ttl after their last
// write, like the Redis keys.
type MemoryStore struct {
	mu        sync.RWMutex
	runs      map[uuid.UUID]memoryEntry
	byCompany map[uuid.UUID]uuid.UUID
	ttl       time.Duration
	now       func() time.Time
}

type memoryEntry struct {
	snap    Snapshot
	expires time.Time
}

func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithTTL(defaultTTL)
}

// NewMemoryStoreWithTTL uses defaultTTL when ttl is not positive.
func NewMemoryStoreWithTTL(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &MemoryStore{
		runs:      make(map[uuid.UUID]memoryEntry),
		byCompany: make(map[uuid.UUID]uuid.UUID),
		ttl:       ttl,
		now:       time.Now,
	}
}

func (m *MemoryStore) Put(ctx context.Context, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.evict(now)
	if _, seen := m.runs[snap.RunID]; !seen {
		m.byCompany[snap.CompanyID] = snap.RunID
	}
	m.runs[snap.RunID] = memoryEntry{snap: snap, expires: now.Add(m.ttl)}
	return nil
}

// evict drops expired snapshots and the company pointers to them. Callers hold mu.
func (m *MemoryStore) evict(now time.Time) {
	for id, e := range m.runs {
		if now.Before(e.expires) {
			continue
		}
		delete(m.runs, id)
		if m.byCompany[e.snap.CompanyID] == id {
			delete(m.byCompany, e.snap.CompanyID)
		}
	}
}

func (m *MemoryStore) Get(ctx context.Context, runID uuid.UUID) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.runs[runID]
	if !ok || !m.now().Before(e.expires) {
		return nil, nil
	}
	snap := e.snap
	return &snap, nil
}

func (m *MemoryStore) LatestForCompany(ctx context.Context, companyID uuid.UUID) (*Snapshot, error) {
	m.mu.RLock()
	runID, ok := m.byCompany[companyID]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return m.Get(ctx, runID)
}

// Len is the number of snapshots held, expired ones included until the next Put.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.runs)
}
