package generators

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/personaforge-backend/internal/data/repos/store"
	"github.com/yungbote/personaforge-backend/internal/domain"
	"github.com/yungbote/personaforge-backend/internal/platform/dbctx"
	"github.com/yungbote/personaforge-backend/internal/platform/logger"
)

type presenceCheck struct {
	stage    domain.StageID
	severity string
	// personaIDs returns the ids of personas owning at least one qualifying record.
	personaIDs func(dbc dbctx.Context, companyID uuid.UUID) ([]string, error)
}

// Audit records, per persona, whether each kind of generated data is present.
type Audit struct {
	deps   *Deps
	log    *logger.Logger
	checks []presenceCheck
}

func NewAudit(deps *Deps) *Audit {
	r := deps.Repos
	byCompany := func(companyID uuid.UUID) store.Filter { return store.Filter{"company_id": companyID} }
	return &Audit{
		deps: deps,
		log:  deps.Log.With("generator", string(domain.StageAudit)),
		checks: []presenceCheck{
			{domain.StageBiographies, domain.SeverityCritical, func(dbc dbctx.Context, id uuid.UUID) ([]string, error) {
				return r.Biographies.Distinct(dbc, "persona_id", byCompany(id), store.NonEmpty("text"))
			}},
			{domain.StageCompetencies, domain.SeverityCritical, func(dbc dbctx.Context, id uuid.UUID) ([]string, error) {
				return r.Competencies.Distinct(dbc, "persona_id", byCompany(id))
			}},
			{domain.StageTechSpecs, domain.SeverityWarning, func(dbc dbctx.Context, id uuid.UUID) ([]string, error) {
				return r.TechSpecs.Distinct(dbc, "persona_id", byCompany(id))
			}},
			{domain.StageTasksGoals, domain.SeverityWarning, func(dbc dbctx.Context, id uuid.UUID) ([]string, error) {
				tasks, err := r.Tasks.Distinct(dbc, "persona_id", byCompany(id))
				if err != nil {
					return nil, err
				}
				goals, err := r.Goals.Distinct(dbc, "persona_id", byCompany(id))
				if err != nil {
					return nil, err
				}
				return intersect(tasks, goals), nil
			}},
			{domain.StageKnowledge, domain.SeverityWarning, func(dbc dbctx.Context, id uuid.UUID) ([]string, error) {
				return r.Knowledge.Distinct(dbc, "persona_id", byCompany(id))
			}},
			{domain.StageWorkflows, domain.SeverityWarning, func(dbc dbctx.Context, id uuid.UUID) ([]string, error) {
				return r.Workflows.Distinct(dbc, "persona_id", byCompany(id))
			}},
			{domain.StageAvatarPrompts, domain.SeverityWarning, func(dbc dbctx.Context, id uuid.UUID) ([]string, error) {
				return r.Avatars.Distinct(dbc, "persona_id", byCompany(id), store.NonEmpty("prompt"))
			}},
			{domain.StageAvatarImages, domain.SeverityWarning, func(dbc dbctx.Context, id uuid.UUID) ([]string, error) {
				return r.Avatars.Distinct(dbc, "persona_id", byCompany(id), store.NonEmpty("image_url"))
			}},
			{domain.StageAvatarFiles, domain.SeverityWarning, func(dbc dbctx.Context, id uuid.UUID) ([]string, error) {
				return r.Avatars.Distinct(dbc, "persona_id", byCompany(id), store.NonEmpty("local_path"))
			}},
		},
	}
}

func (g *Audit) Kind() string { return string(domain.StageAudit) }

func (g *Audit) Generate(ctx context.Context, companyID uuid.UUID, opts Options) (Summary, error) {
	scope, err := g.deps.LoadScope(ctx, companyID)
	if err != nil {
		return Summary{Kind: g.Kind(), CompanyID: companyID}, err
	}
	sum := scope.summary(g.Kind())
	dbc := dbctx.Background(ctx)

	present := make([]map[string]bool, len(g.checks))
	for i, c := range g.checks {
		ids, err := c.personaIDs(dbc, companyID)
		if err != nil {
			return sum, fmt.Errorf("audit %s: %w", c.stage, err)
		}
		set := make(map[string]bool, len(ids))
		for _, id := range ids {
			set[normalizeKey(id)] = true
		}
		present[i] = set
	}

	rows := make([]*domain.AuditEntry, 0, len(scope.Personas)*len(g.checks))
	failed := 0
	for _, p := range scope.Personas {
		for i, c := range g.checks {
			passed := present[i][normalizeKey(p.ID.String())]
			row := &domain.AuditEntry{
				Category: string(c.stage),
				Check:    string(c.stage) + "_present",
				Passed:   passed,
				Severity: domain.SeverityInfo,
				Detail:   fmt.Sprintf("%s data present", c.stage),
			}
			if !passed {
				failed++
				row.Severity = c.severity
				row.Detail = fmt.Sprintf("no %s data for %s", c.stage, p.Code)
			}
			row.Stamp(scope.Company, p, scope.BatchID, scope.At)
			rows = append(rows, row)
		}
		opts.Report(p.Label())
	}

	if err := replace(g.deps, g.log, dbc, g.deps.Repos.Audits, scope, rows, &sum); err != nil {
		return sum, err
	}
	sum.BackupKey = g.deps.backup(ctx, g.log, g.Kind(), scope, rows)
	g.log.Info("Audit complete", "company", scope.Company.Code, "checks", len(rows), "failed", failed)
	return sum, nil
}

func intersect(a, b []string) []string {
	in := make(map[string]bool, len(a))
	for _, v := range a {
		in[normalizeKey(v)] = true
	}
	var out []string
	for _, v := range b {
		if in[normalizeKey(v)] {
			out = append(out, v)
		}
	}
	return out
}
