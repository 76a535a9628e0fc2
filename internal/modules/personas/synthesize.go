package personas

import (
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/yungbote/personaforge-backend/internal/content"
	"github.com/yungbote/personaforge-backend/internal/domain"
)

// PreferredGenderProbability is the chance a slot's gender preference is honoured.
const PreferredGenderProbability = 0.7

// Synthesizer turns roster slots into concrete personas using the country tables.
type Synthesizer struct {
	lib *content.Library
}

func NewSynthesizer(lib *content.Library) *Synthesizer {
	return &Synthesizer{lib: lib}
}

// Synthesize never fails: unknown countries use the default tables.
func (s *Synthesizer) Synthesize(company *domain.Company, slot Slot, rng *rand.Rand) *domain.Persona {
	table, country := s.lib.Country(company.Country)

	gender := pickGender(slot.GenderPreference, rng)
	firstNames := table.FirstNames.Female
	if gender == domain.GenderMale {
		firstNames = table.FirstNames.Male
	}
	first := pick(firstNames, rng)
	last := pick(table.LastNames, rng)

	height := table.HeightCm.Female
	if gender == domain.GenderMale {
		height = table.HeightCm.Male
	}

	p := &domain.Persona{
		CompanyID:   company.ID,
		Code:        PersonaCode(company.Code, slot),
		FirstName:   first,
		LastName:    last,
		FullName:    first + " " + last,
		Gender:      gender,
		RoleTitle:   slot.RoleTitle,
		RoleKind:    slot.RoleKind,
		Department:  slot.Department,
		Email:       Email(first, last, slot.Index, company.Code),
		Phone:       Phone(table.Phone, rng),
		Age:         between(s.lib.AgeRange(slot.RoleKind), rng),
		HeightCm:    between(height, rng),
		HairColor:   pick(table.HairColors, rng),
		EyeColor:    pick(table.EyeColors, rng),
		Ethnicity:   pick(table.Ethnicities, rng),
		Nationality: table.Nationality,
		Status:      domain.PersonaStatusActive,
	}
	p.Config = domain.EncodeJSON(domain.PersonaConfig{
		Slot:        slot.Index,
		Seniority:   seniority(slot.RoleKind),
		Tags:        []string{strings.ToLower(country), slot.RoleKind},
		GeneratedBy: "personas",
	})
	return p
}

func pickGender(preference string, rng *rand.Rand) string {
	switch preference {
	case domain.GenderFemale, domain.GenderMale:
		if rng.Float64() < PreferredGenderProbability {
			return preference
		}
		if preference == domain.GenderFemale {
			return domain.GenderMale
		}
		return domain.GenderFemale
	default:
		if rng.IntN(2) == 0 {
			return domain.GenderFemale
		}
		return domain.GenderMale
	}
}

func pick(values []string, rng *rand.Rand) string {
	if len(values) == 0 {
		return ""
	}
	return values[rng.IntN(len(values))]
}

func between(r content.Range, rng *rand.Rand) int {
	lo, hi := r[0], r[1]
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo + rng.IntN(hi-lo+1)
}

// Email is first.last.index@code.com with accents and punctuation removed.
func Email(first, last string, index int, companyCode string) string {
	local := Slug(first) + "." + Slug(last)
	return local + "." + strconv.Itoa(index) + "@" + DomainSlug(companyCode) + ".com"
}

// Phone replaces every '#' in pattern with a random digit.
func Phone(pattern string, rng *rand.Rand) string {
	if pattern == "" {
		pattern = "+1 (555) ###-####"
	}
	var b strings.Builder
	for _, r := range pattern {
		if r == '#' {
			b.WriteByte(byte('0' + rng.IntN(10)))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func seniority(kind string) string {
	switch kind {
	case domain.RoleKindExecutive:
		return "c-level"
	case domain.RoleKindAssistant:
		return "support"
	default:
		return "individual-contributor"
	}
}
