package generators

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/personaforge-backend/internal/content"
	"github.com/yungbote/personaforge-backend/internal/domain"
	"github.com/yungbote/personaforge-backend/internal/platform/dbctx"
	"github.com/yungbote/personaforge-backend/internal/platform/logger"
)

type TechSpecs struct {
	deps *Deps
	log  *logger.Logger
}

func NewTechSpecs(deps *Deps) *TechSpecs {
	return &TechSpecs{deps: deps, log: deps.Log.With("generator", string(domain.StageTechSpecs))}
}

func (g *TechSpecs) Kind() string { return string(domain.StageTechSpecs) }

func (g *TechSpecs) Generate(ctx context.Context, companyID uuid.UUID, opts Options) (Summary, error) {
	scope, err := g.deps.LoadScope(ctx, companyID)
	if err != nil {
		return Summary{Kind: g.Kind(), CompanyID: companyID}, err
	}
	sum := scope.summary(g.Kind())

	rows := make([]*domain.PersonaTechSpec, 0, len(scope.Personas))
	for _, p := range scope.Personas {
		bucket, rc := g.deps.bucketFor(g.log, p, content.BucketSpecialist)
		spec := rc.TechSpec
		access := spec.AccessLevel
		if access == "" {
			access = "standard"
		}
		row := &domain.PersonaTechSpec{
			Area:        spec.Area,
			Stack:       domain.EncodeStrings(dedupe(spec.Stack)),
			Tools:       domain.EncodeStrings(dedupe(spec.Tools)),
			Platforms:   domain.EncodeStrings(dedupe(spec.Platforms)),
			AccessLevel: access,
			Bucket:      string(bucket),
		}
		row.Stamp(scope.Company, p, scope.BatchID, scope.At)
		rows = append(rows, row)
		opts.Report(p.Label())
	}

	if err := replace(g.deps, g.log, dbctx.Background(ctx), g.deps.Repos.TechSpecs, scope, rows, &sum); err != nil {
		return sum, err
	}
	sum.BackupKey = g.deps.backup(ctx, g.log, g.Kind(), scope, rows)
	return sum, nil
}
