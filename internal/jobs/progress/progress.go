package progress

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/personaforge-backend/internal/domain"
	"github.com/yungbote/personaforge-backend/internal/platform/logger"
)

// Snapshot is the observable state of one cascade run.
type Snapshot struct {
	RunID               uuid.UUID `json:"runId"`
	CompanyID           uuid.UUID `json:"companyId"`
	CompanyCode         string    `json:"companyCode,omitempty"`
	Status              string    `json:"status"`
	CurrentStepIndex    int       `json:"currentStepIndex"`
	TotalSteps          int       `json:"totalSteps"`
	CurrentStage        string    `json:"currentStage,omitempty"`
	CurrentPersonaLabel string    `json:"currentPersonaLabel,omitempty"`
	Error               string    `json:"error,omitempty"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// Terminal reports whether the run has finished.
func (s Snapshot) Terminal() bool {
	switch s.Status {
	case domain.RunStatusCompleted, domain.RunStatusFailed, domain.RunStatusStopped:
		return true
	}
	return false
}

// Store keeps snapshots keyed by run id.
type Store interface {
	Put(ctx context.Context, snap Snapshot) error
	// Get returns nil, nil for unknown runs.
	Get(ctx context.Context, runID uuid.UUID) (*Snapshot, error)
	// LatestForCompany returns the most recently started run of the company.
	LatestForCompany(ctx context.Context, companyID uuid.UUID) (*Snapshot, error)
}

// Tracker updates the snapshot of a single run. Store failures are logged and
// never surface to the caller.
type Tracker struct {
	mu    sync.Mutex
	store Store
	log   *logger.Logger
	snap  Snapshot
}

func NewTracker(log *logger.Logger, store Store, runID uuid.UUID, company *domain.Company, totalSteps int) *Tracker {
	return &Tracker{
		store: store,
		log:   log.With("component", "ProgressTracker", "run_id", runID),
		snap: Snapshot{
			RunID:       runID,
			CompanyID:   company.ID,
			CompanyCode: company.Code,
			Status:      domain.RunStatusIdle,
			TotalSteps:  totalSteps,
		},
	}
}

func (t *Tracker) update(ctx context.Context, fn func(s *Snapshot)) {
	t.mu.Lock()
	fn(&t.snap)
	t.snap.UpdatedAt = time.Now().UTC()
	snap := t.snap
	t.mu.Unlock()
	if t.store == nil {
		return
	}
	// Final writes must land even when the run context is already canceled.
	if err := t.store.Put(context.WithoutCancel(ctx), snap); err != nil {
		t.log.Warn("Progress update failed", "error", err)
	}
}

func (t *Tracker) Start(ctx context.Context) {
	t.update(ctx, func(s *Snapshot) { s.Status = domain.RunStatusRunning })
}

// Step marks stage as current; index is 1-based.
func (t *Tracker) Step(ctx context.Context, index int, stage domain.StageID) {
	t.update(ctx, func(s *Snapshot) {
		s.CurrentStepIndex = index
		s.CurrentStage = string(stage)
		s.CurrentPersonaLabel = ""
	})
}

func (t *Tracker) Persona(ctx context.Context, label string) {
	t.update(ctx, func(s *Snapshot) { s.CurrentPersonaLabel = label })
}

func (t *Tracker) Finish(ctx context.Context, status string, errMsg string) {
	t.update(ctx, func(s *Snapshot) {
		s.Status = status
		s.Error = errMsg
		s.CurrentPersonaLabel = ""
	})
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap
}
