package cascade

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/personaforge-backend/internal/domain"
	"github.com/yungbote/personaforge-backend/internal/modules/generators"
)

// Request selects what a cascade run executes.
type Request struct {
	// RunID is optional; a new id is generated when nil.
	RunID      uuid.UUID
	CompanyID  uuid.UUID
	ExecuteAll bool
	StageID    domain.StageID
	ForceMode  bool
}

func (r Request) mode() string {
	if r.ForceMode {
		return domain.RunModeForce
	}
	return domain.RunModeIncremental
}

type StepResult struct {
	StageID      domain.StageID      `json:"stageId"`
	Success      bool                `json:"success"`
	Skipped      bool                `json:"skipped,omitempty"`
	ErrorMessage string              `json:"errorMessage,omitempty"`
	DurationMs   int64               `json:"durationMs"`
	Timestamp    time.Time           `json:"timestamp"`
	Summary      *generators.Summary `json:"summary,omitempty"`
}

type Summary struct {
	RunID           uuid.UUID    `json:"runId"`
	CompanyID       uuid.UUID    `json:"companyId"`
	CompanyCode     string       `json:"companyCode"`
	Mode            string       `json:"mode"`
	Status          string       `json:"status"`
	Success         bool         `json:"success"`
	Results         []StepResult `json:"results"`
	TotalDurationMs int64        `json:"totalDurationMs"`
}

// Invocation is one stage execution handed to an Executor.
type Invocation struct {
	Stage     domain.StageID
	CompanyID uuid.UUID
	Force     bool
	OnPersona func(label string)
}

// Executor runs one stage. It must honour ctx cancellation and deadlines.
type Executor interface {
	Execute(ctx context.Context, inv Invocation) (generators.Summary, error)
}

// CompletionChecker reports whether a stage's data already exists.
type CompletionChecker interface {
	IsComplete(ctx context.Context, companyID uuid.UUID, stage domain.StageID) (bool, error)
}

// StageMetrics receives run and stage outcomes.
type StageMetrics interface {
	ObserveStage(stage, outcome string, d time.Duration)
	ObserveRun(mode, status string)
	IncBusy()
}
