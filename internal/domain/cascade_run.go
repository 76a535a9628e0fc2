package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	RunStatusIdle      = "idle"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
	RunStatusStopped   = "stopped"

	RunModeForce       = "force"
	RunModeIncremental = "incremental"
)

type CascadeRun struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"company_id"`
	CompanyCode string         `gorm:"column:company_code" json:"company_code"`
	Mode        string         `gorm:"column:mode;not null" json:"mode"`
	ExecuteAll  bool           `gorm:"column:execute_all" json:"execute_all"`
	StageID     string         `gorm:"column:stage_id" json:"stage_id,omitempty"`
	Status      string         `gorm:"column:status;not null;index" json:"status"`
	CurrentStep int            `gorm:"column:current_step" json:"current_step"`
	TotalSteps  int            `gorm:"column:total_steps" json:"total_steps"`
	Results     datatypes.JSON `gorm:"column:results;type:jsonb" json:"results"`
	Error       string         `gorm:"column:error" json:"error,omitempty"`
	StartedAt   time.Time      `gorm:"column:started_at;not null;index" json:"started_at"`
	FinishedAt  *time.Time     `gorm:"column:finished_at" json:"finished_at,omitempty"`
	DurationMs  int64          `gorm:"column:duration_ms" json:"duration_ms"`
	CreatedAt   time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
}

func (CascadeRun) TableName() string { return "cascade_run" }

func (r *CascadeRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Status == "" {
		r.Status = RunStatusIdle
	}
	return nil
}

// Terminal reports whether the run can no longer change.
func (r *CascadeRun) Terminal() bool {
	switch r.Status {
	case RunStatusCompleted, RunStatusFailed, RunStatusStopped:
		return true
	}
	return false
}
