package personas

import (
	"context"
	"math/rand/v2"
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/personaforge-backend/internal/content"
	"github.com/yungbote/personaforge-backend/internal/data/repos"
	"github.com/yungbote/personaforge-backend/internal/data/repos/store"
	"github.com/yungbote/personaforge-backend/internal/data/repos/testutil"
	"github.com/yungbote/personaforge-backend/internal/domain"
	"github.com/yungbote/personaforge-backend/internal/modules/generators"
	"github.com/yungbote/personaforge-backend/internal/platform/dbctx"
)

var emailPattern = regexp.MustCompile(`^[a-z.]+\.\d+@acme\.com$`)

func newSynth(t *testing.T) *Synthesizer {
	t.Helper()
	lib, err := content.Default()
	require.NoError(t, err)
	return NewSynthesizer(lib)
}

func TestDefaultRosterForSixteen(t *testing.T) {
	slots := DefaultRoster(&domain.Company{Code: "ACME", TotalPersonas: 16})
	require.Len(t, slots, 16)

	kinds := map[string]int{}
	genders := map[string]int{}
	for i, s := range slots {
		assert.Equal(t, i+1, s.Index)
		kinds[s.RoleKind]++
		if s.RoleKind == domain.RoleKindAssistant {
			genders[s.GenderPreference]++
		}
	}
	assert.Equal(t, 4, kinds[domain.RoleKindExecutive])
	assert.Equal(t, 4, kinds[domain.RoleKindSpecialist])
	assert.Equal(t, 8, kinds[domain.RoleKindAssistant])
	assert.Equal(t, 4, genders[domain.GenderFemale])
	assert.Equal(t, 4, genders[domain.GenderMale])

	titles := []string{slots[0].RoleTitle, slots[1].RoleTitle, slots[2].RoleTitle, slots[3].RoleTitle}
	assert.Equal(t, []string{"CEO", "CTO", "CFO", "COO"}, titles)
}

func TestDefaultRosterSmallCompanies(t *testing.T) {
	assert.Len(t, DefaultRoster(&domain.Company{TotalPersonas: 2}), 2)
	five := DefaultRoster(&domain.Company{TotalPersonas: 5})
	require.Len(t, five, 5)
	assert.Equal(t, domain.RoleKindSpecialist, five[4].RoleKind)
	assert.Len(t, DefaultRoster(&domain.Company{}), DefaultTotalPersonas)
}

func TestSynthesizeAcme(t *testing.T) {
	synth := newSynth(t)
	company := &domain.Company{Code: "ACME", Name: "Acme", Country: "US", TotalPersonas: 16}
	rng := rand.New(rand.NewPCG(1, 2))

	codes := map[string]bool{}
	for _, slot := range DefaultRoster(company) {
		p := synth.Synthesize(company, slot, rng)
		assert.Regexp(t, emailPattern, p.Email)
		assert.NotEmpty(t, p.FirstName)
		assert.NotEmpty(t, p.LastName)
		assert.Equal(t, p.FirstName+" "+p.LastName, p.FullName)
		assert.Contains(t, []string{domain.GenderFemale, domain.GenderMale}, p.Gender)
		assert.Equal(t, "American", p.Nationality)
		assert.Regexp(t, `^\+1 \(555\) \d{3}-\d{4}$`, p.Phone)
		assert.False(t, codes[p.Code], "duplicate code %s", p.Code)
		codes[p.Code] = true
	}
	assert.Len(t, codes, 16)
}

func TestSynthesizeHonoursGenderPreferenceMostOfTheTime(t *testing.T) {
	synth := newSynth(t)
	company := &domain.Company{Code: "ACME", Country: "US"}
	rng := rand.New(rand.NewPCG(7, 7))
	slot := Slot{RoleTitle: "Executive Assistant", RoleKind: domain.RoleKindAssistant, GenderPreference: domain.GenderFemale, Index: 1}

	female := 0
	const n = 2000
	for i := 0; i < n; i++ {
		if synth.Synthesize(company, slot, rng).Gender == domain.GenderFemale {
			female++
		}
	}
	ratio := float64(female) / n
	assert.InDelta(t, PreferredGenderProbability, ratio, 0.05)
}

func TestSynthesizeUnknownCountryFallsBack(t *testing.T) {
	synth := newSynth(t)
	company := &domain.Company{Code: "ACME", Country: "ZZ"}
	p := synth.Synthesize(company, Slot{RoleTitle: "CEO", RoleKind: domain.RoleKindExecutive, Index: 1}, rand.New(rand.NewPCG(3, 4)))
	assert.Equal(t, "American", p.Nationality)
	assert.Regexp(t, emailPattern, p.Email)
}

func TestSynthesizeAccentedNames(t *testing.T) {
	synth := newSynth(t)
	company := &domain.Company{Code: "ACME", Country: "ES"}
	rng := rand.New(rand.NewPCG(5, 6))
	for i := 1; i <= 30; i++ {
		p := synth.Synthesize(company, Slot{RoleTitle: "Sales Specialist", RoleKind: domain.RoleKindSpecialist, Index: i}, rng)
		assert.Regexp(t, emailPattern, p.Email)
	}
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "alvaro", Slug("Álvaro"))
	assert.Equal(t, "muller", Slug("Müller"))
	assert.Equal(t, "strasse", Slug("Straße"))
	assert.Equal(t, "obrien", Slug("O'Brien"))
	assert.Equal(t, "joao", Slug("João"))
}

func TestDomainSlug(t *testing.T) {
	assert.Equal(t, "acme2", DomainSlug("ACME2"))
	assert.Equal(t, "acme", DomainSlug("ACME"))
	assert.Equal(t, "4711", DomainSlug("4711"))
	assert.Equal(t, "cafe9", DomainSlug("Café-9"))
	assert.Equal(t, "company", DomainSlug("--"))
}

func TestEmailKeepsDigitsInDomain(t *testing.T) {
	assert.Equal(t, "jane.doe.1@acme2.com", Email("Jane", "Doe", 1, "ACME2"))
	assert.NotEqual(t, Email("Jane", "Doe", 1, "ACME"), Email("Jane", "Doe", 1, "ACME2"))
	assert.Equal(t, "jose.nunez.3@4711.com", Email("José", "Núñez", 3, "4711"))
}

func TestPersonaCode(t *testing.T) {
	assert.Equal(t, "ACME-EXE-01", PersonaCode("ACME", Slot{RoleKind: domain.RoleKindExecutive, Index: 1}))
	assert.Equal(t, "ACME-ASI-12", PersonaCode("ACME", Slot{RoleKind: domain.RoleKindAssistant, Index: 12}))
	assert.Equal(t, "ACME-SPE-05", PersonaCode("ACME", Slot{RoleKind: domain.RoleKindSpecialist, Index: 5}))
}

func newGenerator(t *testing.T) (*Generator, *repos.Set) {
	t.Helper()
	gdb := testutil.DB(t)
	log := testutil.Logger(t)
	set := repos.NewSet(gdb, log)
	g := NewGenerator(log, set, newSynth(t))
	g.Seed = SeededRand(42)
	return g, set
}

func TestGeneratorCreatesRoster(t *testing.T) {
	ctx := context.Background()
	g, set := newGenerator(t)
	company := testutil.SeedCompany(t, ctx, set.DB, "ACME", 16)

	var labels []string
	sum, err := g.Generate(ctx, company.ID, generators.Options{OnPersona: func(l string) { labels = append(labels, l) }})
	require.NoError(t, err)
	assert.Equal(t, 16, sum.RecordsCreated)
	assert.Len(t, labels, 16)

	n, err := set.Personas.Count(dbctx.Background(ctx), company.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 16, n)
}

func TestGeneratorIncrementalFillsMissingSlots(t *testing.T) {
	ctx := context.Background()
	g, set := newGenerator(t)
	company := testutil.SeedCompany(t, ctx, set.DB, "ACME", 16)

	_, err := g.Generate(ctx, company.ID, generators.Options{})
	require.NoError(t, err)

	_, err = set.Personas.DeleteByCompany(dbctx.Background(ctx), company.ID)
	require.NoError(t, err)
	sum, err := g.Generate(ctx, company.ID, generators.Options{})
	require.NoError(t, err)
	assert.Equal(t, 16, sum.RecordsCreated)

	sum, err = g.Generate(ctx, company.ID, generators.Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, sum.RecordsCreated, "complete roster is left alone")
}

func TestGeneratorForceWipesAttributeRecords(t *testing.T) {
	ctx := context.Background()
	g, set := newGenerator(t)
	company := testutil.SeedCompany(t, ctx, set.DB, "ACME", 8)

	_, err := g.Generate(ctx, company.ID, generators.Options{})
	require.NoError(t, err)
	personas, err := set.Personas.ListByCompany(dbctx.Background(ctx), company.ID)
	require.NoError(t, err)

	bio := &domain.PersonaBiography{Text: "old", Source: domain.SourceTemplate}
	bio.Stamp(company, personas[0], personas[0].ID, personas[0].CreatedAt)
	_, err = set.Biographies.InsertMany(dbctx.Background(ctx), []*domain.PersonaBiography{bio})
	require.NoError(t, err)

	sum, err := g.Generate(ctx, company.ID, generators.Options{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 8, sum.RecordsCreated)
	assert.EqualValues(t, 8, sum.RecordsDeleted)

	n, err := set.Biographies.Count(dbctx.Background(ctx), store.Filter{"company_id": company.ID})
	require.NoError(t, err)
	assert.Zero(t, n)
	total, err := set.Personas.Count(dbctx.Background(ctx), company.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 8, total)
}

func TestGeneratorUnknownCompany(t *testing.T) {
	g, _ := newGenerator(t)
	_, err := g.Generate(context.Background(), uuid.New(), generators.Options{})
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
}
