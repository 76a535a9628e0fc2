package generators

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/personaforge-backend/internal/content"
	"github.com/yungbote/personaforge-backend/internal/domain"
	"github.com/yungbote/personaforge-backend/internal/platform/dbctx"
	"github.com/yungbote/personaforge-backend/internal/platform/logger"
)

// Knowledge writes RAG snippets per persona, rendered for the company.
type Knowledge struct {
	deps *Deps
	log  *logger.Logger
}

func NewKnowledge(deps *Deps) *Knowledge {
	return &Knowledge{deps: deps, log: deps.Log.With("generator", string(domain.StageKnowledge))}
}

func (g *Knowledge) Kind() string { return string(domain.StageKnowledge) }

func (g *Knowledge) Generate(ctx context.Context, companyID uuid.UUID, opts Options) (Summary, error) {
	scope, err := g.deps.LoadScope(ctx, companyID)
	if err != nil {
		return Summary{Kind: g.Kind(), CompanyID: companyID}, err
	}
	sum := scope.summary(g.Kind())

	var rows []*domain.KnowledgeEntry
	for _, p := range scope.Personas {
		bucket, rc := g.deps.bucketFor(g.log, p, content.BucketSpecialist)
		vars := content.VarsFor(scope.Company, p)
		for _, k := range rc.Knowledge {
			tags := dedupe(k.Tags, []string{normalizeKey(string(bucket))})
			row := &domain.KnowledgeEntry{
				Topic:   k.Topic,
				Title:   content.Render(k.Title, vars),
				Content: content.Render(k.Content, vars),
				Tags:    domain.EncodeStrings(tags),
				Source:  "content:" + string(bucket),
			}
			row.Stamp(scope.Company, p, scope.BatchID, scope.At)
			rows = append(rows, row)
		}
		opts.Report(p.Label())
	}

	if err := replace(g.deps, g.log, dbctx.Background(ctx), g.deps.Repos.Knowledge, scope, rows, &sum); err != nil {
		return sum, err
	}
	sum.BackupKey = g.deps.backup(ctx, g.log, g.Kind(), scope, rows)
	return sum, nil
}
