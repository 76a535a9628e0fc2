package generators

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/personaforge-backend/internal/content"
	"github.com/yungbote/personaforge-backend/internal/domain"
	"github.com/yungbote/personaforge-backend/internal/platform/dbctx"
	"github.com/yungbote/personaforge-backend/internal/platform/logger"
)

// Workflows writes N8N workflow descriptions per persona.
type Workflows struct {
	deps *Deps
	log  *logger.Logger
}

func NewWorkflows(deps *Deps) *Workflows {
	return &Workflows{deps: deps, log: deps.Log.With("generator", string(domain.StageWorkflows))}
}

func (g *Workflows) Kind() string { return string(domain.StageWorkflows) }

func (g *Workflows) Generate(ctx context.Context, companyID uuid.UUID, opts Options) (Summary, error) {
	scope, err := g.deps.LoadScope(ctx, companyID)
	if err != nil {
		return Summary{Kind: g.Kind(), CompanyID: companyID}, err
	}
	sum := scope.summary(g.Kind())

	var rows []*domain.PersonaWorkflow
	for _, p := range scope.Personas {
		_, rc := g.deps.bucketFor(g.log, p, content.BucketAssistant)
		vars := content.VarsFor(scope.Company, p)
		for _, wf := range rc.Workflows {
			nodes := wf.Nodes
			if nodes == nil {
				nodes = []domain.WorkflowNode{}
			}
			row := &domain.PersonaWorkflow{
				Name:        content.Render(wf.Name, vars),
				Description: content.Render(wf.Description, vars),
				Trigger:     wf.Trigger,
				Nodes:       domain.EncodeJSON(nodes),
				Active:      true,
			}
			row.Stamp(scope.Company, p, scope.BatchID, scope.At)
			rows = append(rows, row)
		}
		opts.Report(p.Label())
	}

	if err := replace(g.deps, g.log, dbctx.Background(ctx), g.deps.Repos.Workflows, scope, rows, &sum); err != nil {
		return sum, err
	}
	sum.BackupKey = g.deps.backup(ctx, g.log, g.Kind(), scope, rows)
	return sum, nil
}
