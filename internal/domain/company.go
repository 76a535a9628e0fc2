package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	CompanyStatusActive     = "active"
	CompanyStatusInactive   = "inactive"
	CompanyStatusProcessing = "processing"
)

type Company struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Code          string         `gorm:"column:code;not null;uniqueIndex" json:"code"`
	Name          string         `gorm:"column:name;not null" json:"name"`
	Industry      string         `gorm:"column:industry" json:"industry"`
	Country       string         `gorm:"column:country;not null" json:"country"`
	Languages     datatypes.JSON `gorm:"column:languages;type:jsonb" json:"languages"`
	TotalPersonas int            `gorm:"column:total_personas;not null" json:"total_personas"`
	Status        string         `gorm:"column:status;not null;index" json:"status"`
	// StageFlags caches the last computed stage status view; never authoritative.
	StageFlags   datatypes.JSON `gorm:"column:stage_flags;type:jsonb" json:"stage_flags,omitempty"`
	StageFlagsAt *time.Time     `gorm:"column:stage_flags_at" json:"stage_flags_at,omitempty"`
	CreatedAt    time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null" json:"updated_at"`
}

func (Company) TableName() string { return "company" }

func (c *Company) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Status == "" {
		c.Status = CompanyStatusActive
	}
	return nil
}

// LanguageList decodes Languages, returning nil for empty or malformed values.
func (c *Company) LanguageList() []string {
	return DecodeStrings(c.Languages)
}
