package generators

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/personaforge-backend/internal/content"
	"github.com/yungbote/personaforge-backend/internal/domain"
	"github.com/yungbote/personaforge-backend/internal/platform/dbctx"
	"github.com/yungbote/personaforge-backend/internal/platform/logger"
)

const (
	MaxTechnicalCompetencies = 8
	MaxSoftCompetencies      = 5
)

type Competencies struct {
	deps *Deps
	log  *logger.Logger
}

func NewCompetencies(deps *Deps) *Competencies {
	return &Competencies{deps: deps, log: deps.Log.With("generator", string(domain.StageCompetencies))}
}

func (g *Competencies) Kind() string { return string(domain.StageCompetencies) }

func (g *Competencies) Generate(ctx context.Context, companyID uuid.UUID, opts Options) (Summary, error) {
	scope, err := g.deps.LoadScope(ctx, companyID)
	if err != nil {
		return Summary{Kind: g.Kind(), CompanyID: companyID}, err
	}
	sum := scope.summary(g.Kind())

	languages := scope.Company.LanguageList()
	rows := make([]*domain.PersonaCompetency, 0, len(scope.Personas))
	for _, p := range scope.Personas {
		bucket, rc := g.deps.bucketFor(g.log, p, content.BucketSpecialist)
		row := &domain.PersonaCompetency{
			Technical: domain.EncodeStrings(TechnicalCompetencies(rc)),
			Soft:      domain.EncodeStrings(capList(dedupe(rc.Competencies.Soft), MaxSoftCompetencies)),
			Tools:     domain.EncodeStrings(dedupe(rc.Competencies.Tools)),
			Languages: domain.EncodeStrings(languages),
			Bucket:    string(bucket),
		}
		row.Stamp(scope.Company, p, scope.BatchID, scope.At)
		rows = append(rows, row)
		opts.Report(p.Label())
	}

	if err := replace(g.deps, g.log, dbctx.Background(ctx), g.deps.Repos.Competencies, scope, rows, &sum); err != nil {
		return sum, err
	}
	sum.BackupKey = g.deps.backup(ctx, g.log, g.Kind(), scope, rows)
	return sum, nil
}

// TechnicalCompetencies is the bucket's technical list followed by its
// prospecting skills, deduplicated and capped.
func TechnicalCompetencies(rc content.RoleContent) []string {
	return capList(dedupe(rc.Competencies.Technical, rc.Competencies.Prospecting), MaxTechnicalCompetencies)
}
