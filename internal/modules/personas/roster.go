package personas

import (
	"fmt"

	"github.com/yungbote/personaforge-backend/internal/domain"
)

// DefaultTotalPersonas is used when a company does not set total_personas.
const DefaultTotalPersonas = 16

// Slot describes one position to fill in a company roster.
type Slot struct {
	RoleTitle        string
	Department       string
	RoleKind         string
	GenderPreference string
	// Index is 1-based and unique within the company.
	Index int
}

type position struct {
	title      string
	department string
}

var executivePositions = []position{
	{"CEO", "Executive"},
	{"CTO", "Technology"},
	{"CFO", "Finance"},
	{"COO", "Operations"},
}

var specialistPositions = []position{
	{"Sales Specialist", "Sales"},
	{"Marketing Specialist", "Marketing"},
	{"Software Engineer", "Technology"},
	{"Financial Analyst", "Finance"},
	{"HR Specialist", "People"},
	{"Operations Specialist", "Operations"},
	{"Customer Support Specialist", "Support"},
}

var assistantPositions = []position{
	{"Executive Assistant", "Executive"},
	{"Administrative Assistant", "Operations"},
	{"Sales Assistant", "Sales"},
	{"Marketing Assistant", "Marketing"},
}

// DefaultRoster returns the slots for company: up to four executives, then
// specialists and assistants in a 1:2 ratio filling total_personas. Assistant
// gender preferences alternate female/male.
func DefaultRoster(company *domain.Company) []Slot {
	total := company.TotalPersonas
	if total <= 0 {
		total = DefaultTotalPersonas
	}
	slots := make([]Slot, 0, total)
	add := func(p position, kind, gender string) {
		slots = append(slots, Slot{
			RoleTitle:        p.title,
			Department:       p.department,
			RoleKind:         kind,
			GenderPreference: gender,
			Index:            len(slots) + 1,
		})
	}

	for i := 0; i < len(executivePositions) && len(slots) < total; i++ {
		add(executivePositions[i], domain.RoleKindExecutive, "")
	}
	remaining := total - len(slots)
	specialists := remaining / 3
	if remaining > 0 && specialists == 0 {
		specialists = 1
	}
	assistants := remaining - specialists

	for i := 0; i < specialists; i++ {
		add(specialistPositions[i%len(specialistPositions)], domain.RoleKindSpecialist, "")
	}
	for i := 0; i < assistants; i++ {
		gender := domain.GenderFemale
		if i%2 == 1 {
			gender = domain.GenderMale
		}
		add(assistantPositions[i%len(assistantPositions)], domain.RoleKindAssistant, gender)
	}
	return slots
}

// PersonaCode is <COMPANY>-<KIND>-<NN>, NN being the slot index.
func PersonaCode(companyCode string, slot Slot) string {
	kind := "SPE"
	switch slot.RoleKind {
	case domain.RoleKindExecutive:
		kind = "EXE"
	case domain.RoleKindAssistant:
		kind = "ASI"
	}
	return fmt.Sprintf("%s-%s-%02d", companyCode, kind, slot.Index)
}
