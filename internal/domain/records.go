package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RecordMeta is embedded in every attribute record written by a generator batch.
type RecordMeta struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	PersonaID   uuid.UUID `gorm:"type:uuid;not null;index" json:"persona_id"`
	CompanyID   uuid.UUID `gorm:"type:uuid;not null;index" json:"company_id"`
	CompanyCode string    `gorm:"column:company_code" json:"company_code"`
	PersonaName string    `gorm:"column:persona_name" json:"persona_name"`
	BatchID     uuid.UUID `gorm:"type:uuid;not null;index" json:"batch_id"`
	GeneratedAt time.Time `gorm:"column:generated_at;not null" json:"generated_at"`
	CreatedAt   time.Time `gorm:"not null;index" json:"created_at"`
}

func (m *RecordMeta) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// Stamp fills the provenance fields shared by all records of a batch.
func (m *RecordMeta) Stamp(company *Company, persona *Persona, batchID uuid.UUID, at time.Time) {
	m.CompanyID = company.ID
	m.CompanyCode = company.Code
	m.PersonaID = persona.ID
	m.PersonaName = persona.FullName
	m.BatchID = batchID
	m.GeneratedAt = at
}

const (
	SourceLLM      = "llm"
	SourceTemplate = "template"
)

type PersonaBiography struct {
	RecordMeta
	Summary string `gorm:"column:summary" json:"summary"`
	Text    string `gorm:"column:text;type:text" json:"text"`
	Source  string `gorm:"column:source;not null" json:"source"`
}

func (PersonaBiography) TableName() string { return "persona_biography" }

type PersonaCompetency struct {
	RecordMeta
	Technical datatypes.JSON `gorm:"column:technical;type:jsonb" json:"technical"`
	Soft      datatypes.JSON `gorm:"column:soft;type:jsonb" json:"soft"`
	Tools     datatypes.JSON `gorm:"column:tools;type:jsonb" json:"tools"`
	Languages datatypes.JSON `gorm:"column:languages;type:jsonb" json:"languages"`
	Bucket    string         `gorm:"column:bucket" json:"bucket"`
}

func (PersonaCompetency) TableName() string { return "persona_competency" }

type PersonaTechSpec struct {
	RecordMeta
	Area        string         `gorm:"column:area" json:"area"`
	Stack       datatypes.JSON `gorm:"column:stack;type:jsonb" json:"stack"`
	Tools       datatypes.JSON `gorm:"column:tools;type:jsonb" json:"tools"`
	Platforms   datatypes.JSON `gorm:"column:platforms;type:jsonb" json:"platforms"`
	AccessLevel string         `gorm:"column:access_level" json:"access_level"`
	Bucket      string         `gorm:"column:bucket" json:"bucket"`
}

func (PersonaTechSpec) TableName() string { return "persona_tech_spec" }

type PersonaTask struct {
	RecordMeta
	Title       string `gorm:"column:title;not null" json:"title"`
	Description string `gorm:"column:description;type:text" json:"description"`
	Frequency   string `gorm:"column:frequency" json:"frequency"`
	Priority    string `gorm:"column:priority" json:"priority"`
}

func (PersonaTask) TableName() string { return "persona_task" }

type PersonaGoal struct {
	RecordMeta
	Title   string `gorm:"column:title;not null" json:"title"`
	Metric  string `gorm:"column:metric" json:"metric"`
	Target  string `gorm:"column:target" json:"target"`
	Horizon string `gorm:"column:horizon" json:"horizon"`
}

func (PersonaGoal) TableName() string { return "persona_goal" }

type KnowledgeEntry struct {
	RecordMeta
	Topic   string         `gorm:"column:topic;index" json:"topic"`
	Title   string         `gorm:"column:title;not null" json:"title"`
	Content string         `gorm:"column:content;type:text" json:"content"`
	Tags    datatypes.JSON `gorm:"column:tags;type:jsonb" json:"tags"`
	Source  string         `gorm:"column:source" json:"source"`
}

func (KnowledgeEntry) TableName() string { return "knowledge_entry" }

// WorkflowNode is one N8N node in a persona workflow description.
type WorkflowNode struct {
	Name       string         `json:"name" yaml:"name"`
	Type       string         `json:"type" yaml:"type"`
	Parameters map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

type PersonaWorkflow struct {
	RecordMeta
	Name        string         `gorm:"column:name;not null" json:"name"`
	Description string         `gorm:"column:description;type:text" json:"description"`
	Trigger     string         `gorm:"column:trigger" json:"trigger"`
	Nodes       datatypes.JSON `gorm:"column:nodes;type:jsonb" json:"nodes"`
	Active      bool           `gorm:"column:active" json:"active"`
}

func (PersonaWorkflow) TableName() string { return "persona_workflow" }

type PersonaAvatar struct {
	RecordMeta
	Prompt    string `gorm:"column:prompt;type:text" json:"prompt"`
	ImageURL  string `gorm:"column:image_url" json:"image_url"`
	LocalPath string `gorm:"column:local_path" json:"local_path"`
}

func (PersonaAvatar) TableName() string { return "persona_avatar" }

const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

type AuditEntry struct {
	RecordMeta
	Category string `gorm:"column:category;index" json:"category"`
	Check    string `gorm:"column:check_name" json:"check"`
	Passed   bool   `gorm:"column:passed" json:"passed"`
	Severity string `gorm:"column:severity" json:"severity"`
	Detail   string `gorm:"column:detail" json:"detail"`
}

func (AuditEntry) TableName() string { return "audit_entry" }

// EncodeStrings marshals a string list into a JSON column value.
func EncodeStrings(values []string) datatypes.JSON {
	if values == nil {
		values = []string{}
	}
	b, _ := json.Marshal(values)
	return datatypes.JSON(b)
}

func DecodeStrings(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// EncodeJSON marshals any value into a JSON column value, "null" on failure.
func EncodeJSON(v any) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("null")
	}
	return datatypes.JSON(b)
}
