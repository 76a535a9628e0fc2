package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	RoleKindExecutive  = "executive"
	RoleKindSpecialist = "specialist"
	RoleKindAssistant  = "assistant"

	GenderFemale = "female"
	GenderMale   = "male"

	PersonaStatusActive   = "active"
	PersonaStatusInactive = "inactive"
)

type Persona struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"company_id"`
	Code        string         `gorm:"column:code;not null;uniqueIndex" json:"code"`
	FirstName   string         `gorm:"column:first_name;not null" json:"first_name"`
	LastName    string         `gorm:"column:last_name;not null" json:"last_name"`
	FullName    string         `gorm:"column:full_name;not null" json:"full_name"`
	Gender      string         `gorm:"column:gender;not null" json:"gender"`
	RoleTitle   string         `gorm:"column:role_title;not null" json:"role_title"`
	RoleKind    string         `gorm:"column:role_kind;not null;index" json:"role_kind"`
	Department  string         `gorm:"column:department" json:"department"`
	Email       string         `gorm:"column:email;not null" json:"email"`
	Phone       string         `gorm:"column:phone" json:"phone"`
	Age         int            `gorm:"column:age" json:"age"`
	HeightCm    int            `gorm:"column:height_cm" json:"height_cm"`
	HairColor   string         `gorm:"column:hair_color" json:"hair_color"`
	EyeColor    string         `gorm:"column:eye_color" json:"eye_color"`
	Ethnicity   string         `gorm:"column:ethnicity" json:"ethnicity"`
	Nationality string         `gorm:"column:nationality" json:"nationality"`
	Status      string         `gorm:"column:status;not null;index" json:"status"`
	Config      datatypes.JSON `gorm:"column:config;type:jsonb" json:"config,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
}

func (Persona) TableName() string { return "persona" }

func (p *Persona) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = PersonaStatusActive
	}
	return nil
}

// Label is the human readable progress label for a persona.
func (p *Persona) Label() string {
	if p.RoleTitle == "" {
		return p.FullName
	}
	return p.FullName + " (" + p.RoleTitle + ")"
}

// PersonaConfig is the extensible flavor data stored in Persona.Config.
type PersonaConfig struct {
	Slot        int      `json:"slot"`
	Seniority   string   `json:"seniority,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	GeneratedBy string   `json:"generated_by,omitempty"`
}
