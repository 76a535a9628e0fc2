package repos

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/personaforge-backend/internal/data/repos/testutil"
	"github.com/yungbote/personaforge-backend/internal/domain"
	"github.com/yungbote/personaforge-backend/internal/platform/dbctx"
)

func TestCompanyRepo(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Background(ctx)
	repo := NewCompanyRepo(db, testutil.Logger(t))

	created, err := repo.Create(dbc, &domain.Company{Code: " acme ", Name: "Acme", Country: "US", TotalPersonas: 16})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Code != "ACME" || created.Status != domain.CompanyStatusActive {
		t.Fatalf("unexpected company: %+v", created)
	}
	if _, err := repo.Create(dbc, &domain.Company{Code: "ACME", Name: "Dup", Country: "US"}); !errors.Is(err, ErrDuplicateCode) {
		t.Fatalf("expected ErrDuplicateCode, got %v", err)
	}

	got, err := repo.GetByCode(dbc, "acme")
	if err != nil || got == nil || got.ID != created.ID {
		t.Fatalf("GetByCode: got=%v err=%v", got, err)
	}
	missing, err := repo.GetByCode(dbc, "nope")
	if err != nil || missing != nil {
		t.Fatalf("GetByCode missing: got=%v err=%v", missing, err)
	}

	if err := repo.SetStatus(dbc, created.ID, domain.CompanyStatusProcessing); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if err := repo.SetStatus(dbc, created.ID, "bogus"); err == nil {
		t.Fatalf("expected invalid status error")
	}
	now := time.Now().UTC()
	if err := repo.UpdateStageFlags(dbc, created.ID, domain.EncodeJSON(map[string]bool{"personas": true}), now); err != nil {
		t.Fatalf("UpdateStageFlags: %v", err)
	}
	got, err = repo.GetByID(dbc, created.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != domain.CompanyStatusProcessing {
		t.Fatalf("status=%q", got.Status)
	}
	if got.StageFlagsAt == nil || string(got.StageFlags) != `{"personas":true}` {
		t.Fatalf("stage flags not stored: %s", got.StageFlags)
	}

	list, err := repo.List(dbc, domain.CompanyStatusProcessing)
	if err != nil || len(list) != 1 {
		t.Fatalf("List: n=%d err=%v", len(list), err)
	}
}

func TestPersonaRepo(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Background(ctx)
	repo := NewPersonaRepo(db, testutil.Logger(t))
	company := testutil.SeedCompany(t, ctx, db, "ACME", 3)
	seeded := testutil.SeedPersonas(t, ctx, db, company, "CEO", "CTO", "Executive Assistant")

	if err := db.Model(&domain.Persona{}).Where("id = ?", seeded[2].ID).Update("status", domain.PersonaStatusInactive).Error; err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	active, err := repo.ListActiveByCompany(dbc, company.ID)
	if err != nil {
		t.Fatalf("ListActiveByCompany: %v", err)
	}
	if len(active) != 2 || active[0].Code != seeded[0].Code {
		t.Fatalf("active personas: %d", len(active))
	}
	all, err := repo.ListByCompany(dbc, company.ID)
	if err != nil || len(all) != 3 {
		t.Fatalf("ListByCompany: n=%d err=%v", len(all), err)
	}
	n, err := repo.DeleteByCompany(dbc, company.ID)
	if err != nil || n != 3 {
		t.Fatalf("DeleteByCompany: n=%d err=%v", n, err)
	}
	count, err := repo.Count(dbc, company.ID)
	if err != nil || count != 0 {
		t.Fatalf("Count: n=%d err=%v", count, err)
	}
}

func TestCascadeRunRepo(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Background(ctx)
	repo := NewCascadeRunRepo(db, testutil.Logger(t))
	companyID := uuid.New()

	older, err := repo.Create(dbc, &domain.CascadeRun{CompanyID: companyID, Mode: domain.RunModeForce, StartedAt: time.Now().Add(-time.Hour)})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if older.Status != domain.RunStatusIdle {
		t.Fatalf("default status=%q", older.Status)
	}
	newer, err := repo.Create(dbc, &domain.CascadeRun{CompanyID: companyID, Mode: domain.RunModeIncremental, Status: domain.RunStatusRunning, StartedAt: time.Now()})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.UpdateFields(dbc, newer.ID, map[string]interface{}{"status": domain.RunStatusCompleted, "current_step": 11}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	got, err := repo.GetByID(dbc, newer.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != domain.RunStatusCompleted || got.CurrentStep != 11 || !got.Terminal() {
		t.Fatalf("unexpected run: %+v", got)
	}
	runs, err := repo.ListByCompany(dbc, companyID, 10)
	if err != nil || len(runs) != 2 || runs[0].ID != newer.ID {
		t.Fatalf("ListByCompany: n=%d err=%v", len(runs), err)
	}
	none, err := repo.GetByID(dbc, uuid.New())
	if err != nil || none != nil {
		t.Fatalf("GetByID missing: got=%v err=%v", none, err)
	}
}
