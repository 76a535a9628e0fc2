package cascade

import (
	"context"

	"github.com/yungbote/personaforge-backend/internal/domain"
	"github.com/yungbote/personaforge-backend/internal/modules/generators"
)

// InlineExecutor runs generators in the current process.
type InlineExecutor struct {
	registry *generators.Registry
}

func NewInlineExecutor(registry *generators.Registry) *InlineExecutor {
	return &InlineExecutor{registry: registry}
}

func (x *InlineExecutor) Execute(ctx context.Context, inv Invocation) (generators.Summary, error) {
	gen, ok := x.registry.Get(string(inv.Stage))
	if !ok {
		return generators.Summary{}, &domain.UnknownStageError{Stage: string(inv.Stage)}
	}
	return gen.Generate(ctx, inv.CompanyID, generators.Options{
		Force:     inv.Force,
		OnPersona: inv.OnPersona,
	})
}
