package generators

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/personaforge-backend/internal/content"
	"github.com/yungbote/personaforge-backend/internal/data/repos"
	"github.com/yungbote/personaforge-backend/internal/data/repos/store"
	"github.com/yungbote/personaforge-backend/internal/data/repos/testutil"
	"github.com/yungbote/personaforge-backend/internal/domain"
	"github.com/yungbote/personaforge-backend/internal/platform/dbctx"
	"github.com/yungbote/personaforge-backend/internal/platform/objectstore"
	"github.com/yungbote/personaforge-backend/internal/platform/openai"
)

type fakeText struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (f *fakeText) GenerateText(ctx context.Context, system, user string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.fail {
		return "", errors.New("upstream 500")
	}
	return "Generated biography for " + strings.SplitN(user, "\n", 2)[0], nil
}

type fakeImages struct {
	fail bool
}

func (f *fakeImages) GenerateImage(ctx context.Context, prompt string) (openai.ImageGeneration, error) {
	if f.fail {
		return openai.ImageGeneration{}, errors.New("content policy")
	}
	return openai.ImageGeneration{Bytes: []byte("\x89PNG fake"), MimeType: "image/png"}, nil
}

type fixture struct {
	ctx      context.Context
	deps     *Deps
	set      *repos.Set
	company  *domain.Company
	personas []*domain.Persona
}

func newFixture(t *testing.T, roles ...string) *fixture {
	t.Helper()
	ctx := context.Background()
	gdb := testutil.DB(t)
	log := testutil.Logger(t)
	lib, err := content.Default()
	require.NoError(t, err)
	set := repos.NewSet(gdb, log)
	company := testutil.SeedCompany(t, ctx, gdb, "ACME", len(roles))
	personas := testutil.SeedPersonas(t, ctx, gdb, company, roles...)
	return &fixture{
		ctx:      ctx,
		set:      set,
		company:  company,
		personas: personas,
		deps: &Deps{
			Log:         log,
			Repos:       set,
			Content:     lib,
			Concurrency: 2,
		},
	}
}

func (f *fixture) count(t *testing.T, table interface {
	Count(dbctx.Context, store.Filter, ...store.Cond) (int64, error)
}) int64 {
	t.Helper()
	n, err := table.Count(dbctx.Background(f.ctx), store.Filter{"company_id": f.company.ID})
	require.NoError(t, err)
	return n
}

var defaultRoles = []string{"CEO", "Chief Technology Officer", "Sales Specialist", "Executive Assistant"}

func TestGeneratorsRejectMissingCompany(t *testing.T) {
	f := newFixture(t, defaultRoles...)
	_, err := NewCompetencies(f.deps).Generate(f.ctx, uuid.New(), Options{})
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Zero(t, f.count(t, f.set.Competencies))
}

func TestGeneratorsRejectCompanyWithoutPersonas(t *testing.T) {
	f := newFixture(t)
	_, err := NewKnowledge(f.deps).Generate(f.ctx, f.company.ID, Options{})
	var nd *domain.NoDataError
	require.ErrorAs(t, err, &nd)
}

func TestReplaceGeneratorsAreIdempotent(t *testing.T) {
	f := newFixture(t, defaultRoles...)
	cases := []struct {
		gen   Generator
		count func() int64
	}{
		{NewBiographies(f.deps), func() int64 { return f.count(t, f.set.Biographies) }},
		{NewCompetencies(f.deps), func() int64 { return f.count(t, f.set.Competencies) }},
		{NewTechSpecs(f.deps), func() int64 { return f.count(t, f.set.TechSpecs) }},
		{NewTasksGoals(f.deps), func() int64 { return f.count(t, f.set.Tasks) + f.count(t, f.set.Goals) }},
		{NewKnowledge(f.deps), func() int64 { return f.count(t, f.set.Knowledge) }},
		{NewWorkflows(f.deps), func() int64 { return f.count(t, f.set.Workflows) }},
		{NewAvatarPrompts(f.deps), func() int64 { return f.count(t, f.set.Avatars) }},
	}
	for _, tc := range cases {
		t.Run(tc.gen.Kind(), func(t *testing.T) {
			first, err := tc.gen.Generate(f.ctx, f.company.ID, Options{})
			require.NoError(t, err)
			require.Positive(t, first.RecordsCreated)
			once := tc.count()
			assert.EqualValues(t, first.RecordsCreated, once)

			second, err := tc.gen.Generate(f.ctx, f.company.ID, Options{Force: true})
			require.NoError(t, err)
			assert.Equal(t, once, tc.count(), "re-running replaces the batch")
			assert.EqualValues(t, once, second.RecordsDeleted)
			assert.Equal(t, len(f.personas), second.PersonasProcessed)
		})
	}
}

func TestCompetenciesForCTOAreSubsetOfBucket(t *testing.T) {
	f := newFixture(t, "Chief Technology Officer")
	_, err := NewCompetencies(f.deps).Generate(f.ctx, f.company.ID, Options{})
	require.NoError(t, err)

	rows, err := f.set.Competencies.Find(dbctx.Background(f.ctx), store.Filter{"company_id": f.company.ID})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, string(content.BucketCTO), rows[0].Bucket)

	rc, found := f.deps.Content.Role(content.BucketCTO)
	require.True(t, found)
	allowed := map[string]bool{}
	for _, v := range append(append([]string{}, rc.Competencies.Technical...), rc.Competencies.Prospecting...) {
		allowed[v] = true
	}
	technical := domain.DecodeStrings(rows[0].Technical)
	require.NotEmpty(t, technical)
	assert.LessOrEqual(t, len(technical), MaxTechnicalCompetencies)
	seen := map[string]bool{}
	for _, v := range technical {
		assert.True(t, allowed[v], "%q is not in the CTO bucket", v)
		assert.False(t, seen[v], "%q is duplicated", v)
		seen[v] = true
	}
	assert.Equal(t, []string{"en"}, domain.DecodeStrings(rows[0].Languages))
}

func TestTechnicalCompetenciesDedupesAndCaps(t *testing.T) {
	rc := content.RoleContent{Competencies: content.Competencies{
		Technical:   []string{"A", "B", "C", "D", "E", "F"},
		Prospecting: []string{"b", "G", "H", "I"},
	}}
	assert.Equal(t, []string{"A", "B", "C", "D", "E", "F", "G", "H"}, TechnicalCompetencies(rc))
}

func TestBiographiesUseLLMWhenAvailable(t *testing.T) {
	f := newFixture(t, defaultRoles...)
	text := &fakeText{}
	f.deps.Text = text

	var mu sync.Mutex
	var labels []string
	sum, err := NewBiographies(f.deps).Generate(f.ctx, f.company.ID, Options{OnPersona: func(l string) {
		mu.Lock()
		labels = append(labels, l)
		mu.Unlock()
	}})
	require.NoError(t, err)
	assert.Equal(t, len(defaultRoles), sum.RecordsCreated)
	assert.Zero(t, sum.Fallbacks)
	assert.Equal(t, len(defaultRoles), text.calls)
	assert.Len(t, labels, len(defaultRoles))

	rows, err := f.set.Biographies.Find(dbctx.Background(f.ctx), store.Filter{"company_id": f.company.ID})
	require.NoError(t, err)
	for _, r := range rows {
		assert.Equal(t, domain.SourceLLM, r.Source)
		assert.True(t, strings.HasPrefix(r.Text, "Generated biography for Name:"))
		assert.Equal(t, f.company.Code, r.CompanyCode)
	}
}

func TestBiographiesFallBackToTemplates(t *testing.T) {
	f := newFixture(t, defaultRoles...)
	f.deps.Text = &fakeText{fail: true}

	sum, err := NewBiographies(f.deps).Generate(f.ctx, f.company.ID, Options{})
	require.NoError(t, err)
	assert.Equal(t, len(defaultRoles), sum.RecordsCreated)
	assert.Equal(t, len(defaultRoles), sum.Fallbacks)

	rows, err := f.set.Biographies.Find(dbctx.Background(f.ctx), store.Filter{"company_id": f.company.ID})
	require.NoError(t, err)
	for _, r := range rows {
		assert.Equal(t, domain.SourceTemplate, r.Source)
		assert.NotContains(t, r.Text, "{")
		assert.Contains(t, r.Text, r.PersonaName)
	}
}

func TestTasksGoalsReplaceBothTables(t *testing.T) {
	f := newFixture(t, defaultRoles...)
	sum, err := NewTasksGoals(f.deps).Generate(f.ctx, f.company.ID, Options{})
	require.NoError(t, err)
	tasks, goals := f.count(t, f.set.Tasks), f.count(t, f.set.Goals)
	assert.Positive(t, tasks)
	assert.Positive(t, goals)
	assert.EqualValues(t, tasks+goals, sum.RecordsCreated)
}

func TestBackupsAreWrittenToObjectStore(t *testing.T) {
	f := newFixture(t, defaultRoles...)
	root := t.TempDir()
	objects, err := objectstore.NewLocalStore(f.deps.Log, root, "")
	require.NoError(t, err)
	f.deps.Objects = objects
	f.deps.Backups = true

	sum, err := NewWorkflows(f.deps).Generate(f.ctx, f.company.ID, Options{})
	require.NoError(t, err)
	require.NotEmpty(t, sum.BackupKey)
	assert.True(t, strings.HasPrefix(sum.BackupKey, "backups/workflows/ACME/"))

	raw, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(sum.BackupKey)))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"kind": "workflows"`)
}

func TestAvatarPipeline(t *testing.T) {
	f := newFixture(t, defaultRoles...)
	objects, err := objectstore.NewLocalStore(f.deps.Log, t.TempDir(), "")
	require.NoError(t, err)
	f.deps.Objects = objects
	f.deps.Images = &fakeImages{}
	f.deps.MediaDir = t.TempDir()

	_, err = NewAvatarImages(f.deps).Generate(f.ctx, f.company.ID, Options{})
	var nd *domain.NoDataError
	require.ErrorAs(t, err, &nd, "images need prompts first")

	_, err = NewAvatarPrompts(f.deps).Generate(f.ctx, f.company.ID, Options{})
	require.NoError(t, err)

	sum, err := NewAvatarImages(f.deps).Generate(f.ctx, f.company.ID, Options{})
	require.NoError(t, err)
	assert.Equal(t, len(defaultRoles), sum.RecordsCreated)
	assert.Zero(t, sum.Fallbacks)

	sum, err = NewAvatarImages(f.deps).Generate(f.ctx, f.company.ID, Options{})
	require.NoError(t, err)
	assert.Zero(t, sum.RecordsCreated, "incremental run leaves existing images")

	sum, err = NewAvatarFiles(f.deps).Generate(f.ctx, f.company.ID, Options{})
	require.NoError(t, err)
	assert.Equal(t, len(defaultRoles), sum.RecordsCreated)

	rows, err := f.set.Avatars.Find(dbctx.Background(f.ctx), store.Filter{"company_id": f.company.ID})
	require.NoError(t, err)
	require.Len(t, rows, len(defaultRoles))
	for _, r := range rows {
		require.NotEmpty(t, r.LocalPath)
		raw, err := os.ReadFile(r.LocalPath)
		require.NoError(t, err)
		assert.Equal(t, "\x89PNG fake", string(raw))
	}
}

func TestAvatarImagesUsePlaceholderOnFailure(t *testing.T) {
	f := newFixture(t, defaultRoles...)
	f.deps.Images = &fakeImages{fail: true}
	objects, err := objectstore.NewLocalStore(f.deps.Log, t.TempDir(), "")
	require.NoError(t, err)
	f.deps.Objects = objects

	_, err = NewAvatarPrompts(f.deps).Generate(f.ctx, f.company.ID, Options{})
	require.NoError(t, err)
	sum, err := NewAvatarImages(f.deps).Generate(f.ctx, f.company.ID, Options{})
	require.NoError(t, err)
	assert.Equal(t, len(defaultRoles), sum.Fallbacks)

	rows, err := f.set.Avatars.Find(dbctx.Background(f.ctx), store.Filter{"company_id": f.company.ID})
	require.NoError(t, err)
	codes := map[uuid.UUID]string{}
	for _, p := range f.personas {
		codes[p.ID] = p.Code
	}
	for _, r := range rows {
		assert.Equal(t, PlaceholderAvatarURL(codes[r.PersonaID]), r.ImageURL)
	}
}

func TestAvatarFilesDownloadOverHTTP(t *testing.T) {
	f := newFixture(t, "CEO")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/a.png" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()
	f.deps.MediaDir = t.TempDir()
	f.deps.HTTPClient = srv.Client()

	row := &domain.PersonaAvatar{Prompt: "p", ImageURL: srv.URL + "/a.png"}
	row.Stamp(f.company, f.personas[0], uuid.New(), f.company.CreatedAt)
	_, err := f.set.Avatars.InsertMany(dbctx.Background(f.ctx), []*domain.PersonaAvatar{row})
	require.NoError(t, err)

	sum, err := NewAvatarFiles(f.deps).Generate(f.ctx, f.company.ID, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.RecordsCreated)

	want := filepath.Join(f.deps.MediaDir, "avatars", "ACME", f.personas[0].Code+".png")
	raw, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(raw))

	// A failed download falls back to the local placeholder.
	_, err = f.set.Avatars.Replace(dbctx.Background(f.ctx), store.Filter{"company_id": f.company.ID}, []*domain.PersonaAvatar{{
		RecordMeta: row.RecordMeta, Prompt: "p", ImageURL: srv.URL + "/missing.png",
	}})
	require.NoError(t, err)
	sum, err = NewAvatarFiles(f.deps).Generate(f.ctx, f.company.ID, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.RecordsCreated)
	assert.Equal(t, 1, sum.Fallbacks)
	raw, err = os.ReadFile(want)
	require.NoError(t, err)
	placeholder, err := PlaceholderAvatar(f.personas[0].Code)
	require.NoError(t, err)
	assert.Equal(t, placeholder, raw)
}

type failingTransport struct {
	mu    sync.Mutex
	calls int
}

func (f *failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return nil, errors.New("dial tcp: network is unreachable")
}

func TestAvatarFilesWritePlaceholdersOffline(t *testing.T) {
	f := newFixture(t, defaultRoles...)
	transport := &failingTransport{}
	f.deps.HTTPClient = &http.Client{Transport: transport}
	f.deps.MediaDir = t.TempDir()

	_, err := NewAvatarPrompts(f.deps).Generate(f.ctx, f.company.ID, Options{})
	require.NoError(t, err)
	sum, err := NewAvatarImages(f.deps).Generate(f.ctx, f.company.ID, Options{})
	require.NoError(t, err)
	require.Equal(t, len(defaultRoles), sum.Fallbacks, "no image backend configured")

	// One avatar points at a real host that cannot be reached.
	rows, err := f.set.Avatars.Find(dbctx.Background(f.ctx), store.Filter{"company_id": f.company.ID})
	require.NoError(t, err)
	rows[0].ImageURL = "https://images.example.com/a.png"
	require.NoError(t, f.set.Avatars.Upsert(dbctx.Background(f.ctx), rows[:1]))

	sum, err = NewAvatarFiles(f.deps).Generate(f.ctx, f.company.ID, Options{})
	require.NoError(t, err)
	assert.Equal(t, len(defaultRoles), sum.RecordsCreated)
	assert.Equal(t, len(defaultRoles), sum.Fallbacks)
	assert.Zero(t, sum.RecordsFailed)
	assert.Equal(t, 1, transport.calls, "placeholder urls are never fetched")

	codes := map[uuid.UUID]string{}
	for _, p := range f.personas {
		codes[p.ID] = p.Code
	}
	rows, err = f.set.Avatars.Find(dbctx.Background(f.ctx), store.Filter{"company_id": f.company.ID})
	require.NoError(t, err)
	for _, r := range rows {
		require.NotEmpty(t, r.LocalPath)
		raw, err := os.ReadFile(r.LocalPath)
		require.NoError(t, err)
		want, err := PlaceholderAvatar(codes[r.PersonaID])
		require.NoError(t, err)
		assert.Equal(t, want, raw)
	}

	sum, err = NewAudit(f.deps).Generate(f.ctx, f.company.ID, Options{})
	require.NoError(t, err)
	assert.NotZero(t, sum.RecordsCreated)
}

func TestAvatarFilesReportEveryFailedRow(t *testing.T) {
	f := newFixture(t, "CEO", "Sales Specialist")
	media := filepath.Join(t.TempDir(), "media")
	require.NoError(t, os.WriteFile(media, []byte("not a directory"), 0o644))
	f.deps.MediaDir = media

	_, err := NewAvatarPrompts(f.deps).Generate(f.ctx, f.company.ID, Options{})
	require.NoError(t, err)
	_, err = NewAvatarImages(f.deps).Generate(f.ctx, f.company.ID, Options{})
	require.NoError(t, err)

	sum, err := NewAvatarFiles(f.deps).Generate(f.ctx, f.company.ID, Options{})
	var pw *domain.PartialWriteError
	require.ErrorAs(t, err, &pw)
	assert.Equal(t, 2, pw.Attempted)
	require.Len(t, pw.Failed, 2)
	assert.Equal(t, 0, pw.Failed[0].Index)
	assert.Equal(t, 1, pw.Failed[1].Index)
	assert.Contains(t, err.Error(), "2 of 2 rows failed")
	assert.Equal(t, 2, sum.RecordsFailed)
}

func TestPlaceholderAvatarIsDeterministicPNG(t *testing.T) {
	a, err := PlaceholderAvatar("ACME-P-01")
	require.NoError(t, err)
	b, err := PlaceholderAvatar("ACME-P-01")
	require.NoError(t, err)
	c, err := PlaceholderAvatar("ACME-P-02")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, strings.HasPrefix(string(a), "\x89PNG"))
}

func TestAuditReportsMissingData(t *testing.T) {
	f := newFixture(t, defaultRoles...)
	_, err := NewBiographies(f.deps).Generate(f.ctx, f.company.ID, Options{})
	require.NoError(t, err)

	sum, err := NewAudit(f.deps).Generate(f.ctx, f.company.ID, Options{})
	require.NoError(t, err)
	checks := len(NewAudit(f.deps).checks)
	assert.Equal(t, len(defaultRoles)*checks, sum.RecordsCreated)

	rows, err := f.set.Audits.Find(dbctx.Background(f.ctx), store.Filter{"company_id": f.company.ID})
	require.NoError(t, err)
	for _, r := range rows {
		switch r.Category {
		case string(domain.StageBiographies):
			assert.True(t, r.Passed)
			assert.Equal(t, domain.SeverityInfo, r.Severity)
		case string(domain.StageCompetencies):
			assert.False(t, r.Passed)
			assert.Equal(t, domain.SeverityCritical, r.Severity)
		default:
			assert.False(t, r.Passed)
			assert.Equal(t, domain.SeverityWarning, r.Severity)
		}
	}
}

func TestRegistry(t *testing.T) {
	f := newFixture(t, "CEO")
	r := NewRegistry()
	require.NoError(t, r.Register(NewAudit(f.deps)))
	require.NoError(t, r.Register(NewKnowledge(f.deps)))
	assert.Error(t, r.Register(NewAudit(f.deps)))
	assert.Error(t, r.Register(nil))
	g, ok := r.Get("audit")
	require.True(t, ok)
	assert.Equal(t, "audit", g.Kind())
	assert.Equal(t, []string{"audit", "knowledge"}, r.Kinds())
}

func TestAttributeGeneratorsCoverEveryRecordStage(t *testing.T) {
	f := newFixture(t, "CEO")
	r := NewRegistry()
	require.NoError(t, r.RegisterAll(AttributeGenerators(f.deps)...))
	for _, stage := range domain.StageOrder {
		_, ok := r.Get(string(stage))
		assert.Equal(t, stage != domain.StagePersonas, ok, stage)
	}
	assert.Error(t, r.RegisterAll(NewAudit(f.deps)))
}
