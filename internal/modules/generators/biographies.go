package generators

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/personaforge-backend/internal/content"
	"github.com/yungbote/personaforge-backend/internal/domain"
	"github.com/yungbote/personaforge-backend/internal/platform/dbctx"
	"github.com/yungbote/personaforge-backend/internal/platform/logger"
)

const biographySystemPrompt = "You write concise, realistic third-person professional biographies " +
	"for fictional employees of a company. Plain prose, no headings, no lists, 120 to 180 words."

// Biographies writes one biography per persona, by LLM when available and
// from the bucket templates otherwise.
type Biographies struct {
	deps *Deps
	log  *logger.Logger
}

func NewBiographies(deps *Deps) *Biographies {
	return &Biographies{deps: deps, log: deps.Log.With("generator", string(domain.StageBiographies))}
}

func (g *Biographies) Kind() string { return string(domain.StageBiographies) }

func (g *Biographies) Generate(ctx context.Context, companyID uuid.UUID, opts Options) (Summary, error) {
	scope, err := g.deps.LoadScope(ctx, companyID)
	if err != nil {
		return Summary{Kind: g.Kind(), CompanyID: companyID}, err
	}
	sum := scope.summary(g.Kind())

	rows := make([]*domain.PersonaBiography, len(scope.Personas))
	fallbacks := make([]bool, len(scope.Personas))

	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.deps.concurrency())
	for i, p := range scope.Personas {
		eg.Go(func() error {
			_, rc := g.deps.bucketFor(g.log, p, content.BucketSpecialist)
			vars := content.VarsFor(scope.Company, p)
			text, source, err := g.compose(egctx, scope.Company, p, rc, vars)
			if err != nil {
				return err
			}
			row := &domain.PersonaBiography{
				Summary: content.Render(rc.Summary, vars),
				Text:    text,
				Source:  source,
			}
			row.Stamp(scope.Company, p, scope.BatchID, scope.At)
			rows[i] = row
			fallbacks[i] = source == domain.SourceTemplate
			opts.Report(p.Label())
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return sum, err
	}
	for _, fb := range fallbacks {
		if fb {
			sum.Fallbacks++
		}
	}

	if err := replace(g.deps, g.log, dbctx.Background(ctx), g.deps.Repos.Biographies, scope, rows, &sum); err != nil {
		return sum, err
	}
	sum.BackupKey = g.deps.backup(ctx, g.log, g.Kind(), scope, rows)
	g.log.Info("Biographies generated", "company", scope.Company.Code, "created", sum.RecordsCreated, "fallbacks", sum.Fallbacks)
	return sum, nil
}

// compose only fails when ctx is done; generation errors fall back to templates.
func (g *Biographies) compose(ctx context.Context, company *domain.Company, p *domain.Persona, rc content.RoleContent, vars content.Vars) (string, string, error) {
	template := content.Render(rc.Biographies[pickIndex(p.Code, len(rc.Biographies))], vars)
	if g.deps.Text == nil {
		return template, domain.SourceTemplate, nil
	}
	text, err := g.deps.Text.GenerateText(ctx, biographySystemPrompt, biographyPrompt(company, p))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", "", ctxErr
		}
		svcErr := &domain.ExternalServiceError{Service: "openai", Err: err}
		g.log.Warn("Biography generation failed, using template", "persona", p.Code, "error", svcErr)
		return template, domain.SourceTemplate, nil
	}
	text = strings.TrimSpace(text)
	if text == "" {
		g.log.Warn("Biography generation returned empty text, using template", "persona", p.Code)
		return template, domain.SourceTemplate, nil
	}
	return text, domain.SourceLLM, nil
}

func biographyPrompt(company *domain.Company, p *domain.Persona) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", p.FullName)
	fmt.Fprintf(&b, "Role: %s (%s department)\n", p.RoleTitle, p.Department)
	fmt.Fprintf(&b, "Company: %s", company.Name)
	if company.Industry != "" {
		fmt.Fprintf(&b, ", %s industry", company.Industry)
	}
	b.WriteString("\n")
	if p.Nationality != "" {
		fmt.Fprintf(&b, "Nationality: %s\n", p.Nationality)
	}
	if p.Age > 0 {
		fmt.Fprintf(&b, "Age: %d\n", p.Age)
	}
	b.WriteString("Write the biography.")
	return b.String()
}
