package generators

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/personaforge-backend/internal/content"
	"github.com/yungbote/personaforge-backend/internal/domain"
	"github.com/yungbote/personaforge-backend/internal/platform/dbctx"
	"github.com/yungbote/personaforge-backend/internal/platform/logger"
)

// TasksGoals writes the recurring tasks and the goals of every persona.
// Both tables are swapped in one transaction.
type TasksGoals struct {
	deps *Deps
	log  *logger.Logger
}

func NewTasksGoals(deps *Deps) *TasksGoals {
	return &TasksGoals{deps: deps, log: deps.Log.With("generator", string(domain.StageTasksGoals))}
}

func (g *TasksGoals) Kind() string { return string(domain.StageTasksGoals) }

func (g *TasksGoals) Generate(ctx context.Context, companyID uuid.UUID, opts Options) (Summary, error) {
	scope, err := g.deps.LoadScope(ctx, companyID)
	if err != nil {
		return Summary{Kind: g.Kind(), CompanyID: companyID}, err
	}
	sum := scope.summary(g.Kind())

	var (
		tasks []*domain.PersonaTask
		goals []*domain.PersonaGoal
	)
	for _, p := range scope.Personas {
		_, rc := g.deps.bucketFor(g.log, p, content.BucketAssistant)
		vars := content.VarsFor(scope.Company, p)
		render := func(s string) string { return content.Render(s, vars) }
		for _, t := range rc.Tasks {
			row := &domain.PersonaTask{
				Title:       render(t.Title),
				Description: render(t.Description),
				Frequency:   t.Frequency,
				Priority:    t.Priority,
			}
			row.Stamp(scope.Company, p, scope.BatchID, scope.At)
			tasks = append(tasks, row)
		}
		for _, gl := range rc.Goals {
			row := &domain.PersonaGoal{
				Title:   render(gl.Title),
				Metric:  gl.Metric,
				Target:  gl.Target,
				Horizon: gl.Horizon,
			}
			row.Stamp(scope.Company, p, scope.BatchID, scope.At)
			goals = append(goals, row)
		}
		opts.Report(p.Label())
	}

	err = g.deps.Repos.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inner := dbctx.Background(ctx).WithTx(tx)
		if err := replace(g.deps, g.log, inner, g.deps.Repos.Tasks, scope, tasks, &sum); err != nil {
			return err
		}
		return replace(g.deps, g.log, inner, g.deps.Repos.Goals, scope, goals, &sum)
	})
	if err != nil {
		return sum, err
	}
	sum.BackupKey = g.deps.backup(ctx, g.log, g.Kind(), scope, map[string]any{"tasks": tasks, "goals": goals})
	return sum, nil
}
