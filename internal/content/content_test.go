package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/personaforge-backend/internal/domain"
)

func TestResolveBucket(t *testing.T) {
	cases := map[string]Bucket{
		"CEO":                            BucketCEO,
		"Chief Executive Officer":        BucketCEO,
		"cto":                            BucketCTO,
		"Chief Financial Officer (CFO)":  BucketCFO,
		"COO":                            BucketCOO,
		"Executive Assistant to the CEO": BucketAssistant,
		"Sales Specialist":               BucketSales,
		"Marketing Specialist":           BucketMarketing,
		"Senior Software Engineer":       BucketEngineering,
		"Financial Analyst":              BucketFinance,
		"HR Generalist":                  BucketHR,
		"Operations Coordinator":         BucketOperations,
		"Customer Support Agent":         BucketSupport,
	}
	for role, want := range cases {
		got, matched := ResolveBucket(role, BucketSpecialist)
		assert.True(t, matched, role)
		assert.Equal(t, want, got, role)
	}
}

func TestResolveBucketAcronymsMatchWholeWords(t *testing.T) {
	// "Director" contains "cto" and "Coordinator" contains "coo".
	got, _ := ResolveBucket("Program Director", BucketSpecialist)
	assert.Equal(t, BucketSpecialist, got)
	got, _ = ResolveBucket("Event Coordinator", BucketSpecialist)
	assert.Equal(t, BucketSpecialist, got)
}

func TestResolveBucketIsTotalAndDeterministic(t *testing.T) {
	for _, role := range []string{"", "   ", "Chief Vibes Officer", "Zookeeper", "CTO", "Sales Assistant"} {
		first, m1 := ResolveBucket(role, BucketAssistant)
		for i := 0; i < 5; i++ {
			again, m2 := ResolveBucket(role, BucketAssistant)
			require.Equal(t, first, again, role)
			require.Equal(t, m1, m2, role)
		}
		require.NotEmpty(t, first)
	}
	got, matched := ResolveBucket("Zookeeper", BucketAssistant)
	assert.False(t, matched)
	assert.Equal(t, BucketAssistant, got)
}

func TestLoadEmbeddedTables(t *testing.T) {
	lib, err := Load()
	require.NoError(t, err)

	for _, b := range AllBuckets() {
		_, found := lib.Role(b)
		assert.True(t, found, "bucket %s has no content table", b)
	}
	us, code := lib.Country("us")
	assert.Equal(t, "US", code)
	assert.Equal(t, "+1 (555) ###-####", us.Phone)

	_, code = lib.Country("ZZ")
	assert.Equal(t, "US", code, "unknown countries fall back to US")

	r := lib.AgeRange(domain.RoleKindExecutive)
	assert.Less(t, r[0], r[1])
}

func TestRender(t *testing.T) {
	company := &domain.Company{Name: "Acme", Industry: "Logistics"}
	p := &domain.Persona{FirstName: "Jane", FullName: "Jane Doe", RoleTitle: "CTO", Department: "Technology", Age: 40}
	out := Render("{full} ({first}) is {role} at {company} in {industry}, {department}, {years} years", VarsFor(company, p))
	assert.Equal(t, "Jane Doe (Jane) is CTO at Acme in Logistics, Technology, 18 years", out)
}
