package personas

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/personaforge-backend/internal/data/repos"
	"github.com/yungbote/personaforge-backend/internal/domain"
	"github.com/yungbote/personaforge-backend/internal/modules/generators"
	"github.com/yungbote/personaforge-backend/internal/platform/dbctx"
	"github.com/yungbote/personaforge-backend/internal/platform/logger"
)

// Generator is the personas stage. With Force it replaces the whole roster and
// every attribute record of the company; otherwise it only fills missing slots.
type Generator struct {
	repos *repos.Set
	synth *Synthesizer
	log   *logger.Logger
	// Seed returns the random source for one run; defaults to a time-seeded PCG.
	Seed func(company *domain.Company) *rand.Rand
}

func NewGenerator(baseLog *logger.Logger, set *repos.Set, synth *Synthesizer) *Generator {
	return &Generator{
		repos: set,
		synth: synth,
		log:   baseLog.With("generator", string(domain.StagePersonas)),
	}
}

func (g *Generator) Kind() string { return string(domain.StagePersonas) }

func (g *Generator) rng(company *domain.Company) *rand.Rand {
	if g.Seed != nil {
		return g.Seed(company)
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(company.Code))
	return rand.New(rand.NewPCG(h.Sum64(), uint64(time.Now().UnixNano())))
}

// SeededRand returns a deterministic source for a company, for tests and replays.
func SeededRand(seed uint64) func(*domain.Company) *rand.Rand {
	return func(company *domain.Company) *rand.Rand {
		h := fnv.New64a()
		_, _ = h.Write([]byte(company.Code))
		return rand.New(rand.NewPCG(h.Sum64(), seed))
	}
}

func (g *Generator) Generate(ctx context.Context, companyID uuid.UUID, opts generators.Options) (generators.Summary, error) {
	sum := generators.Summary{Kind: g.Kind(), CompanyID: companyID, BatchID: uuid.New()}
	dbc := dbctx.Background(ctx)

	company, err := g.repos.Companies.GetByID(dbc, companyID)
	if err != nil {
		return sum, fmt.Errorf("load company: %w", err)
	}
	if company == nil {
		return sum, &domain.NotFoundError{Entity: "company", Key: companyID.String()}
	}
	sum.CompanyCode = company.Code

	existing, err := g.repos.Personas.ListByCompany(dbc, companyID)
	if err != nil {
		return sum, fmt.Errorf("load personas: %w", err)
	}
	taken := make(map[string]bool, len(existing))
	if !opts.Force {
		for _, p := range existing {
			taken[p.Code] = true
		}
	}

	rng := g.rng(company)
	var fresh []*domain.Persona
	for _, slot := range DefaultRoster(company) {
		// Sample every slot so a seeded run produces the same people regardless
		// of which slots already exist.
		p := g.synth.Synthesize(company, slot, rng)
		if taken[p.Code] {
			continue
		}
		fresh = append(fresh, p)
	}
	if len(fresh) == 0 {
		g.log.Info("Roster already complete", "company", company.Code, "personas", len(existing))
		return sum, nil
	}

	err = g.repos.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inner := dbc.WithTx(tx)
		if opts.Force {
			purged, err := g.repos.PurgeCompanyRecords(inner, companyID)
			if err != nil {
				return err
			}
			deleted, err := g.repos.Personas.DeleteByCompany(inner, companyID)
			if err != nil {
				return err
			}
			sum.RecordsDeleted = deleted
			g.log.Info("Cleared company roster", "company", company.Code, "personas", deleted, "records", purged)
		}
		created, err := g.repos.Personas.Create(inner, fresh)
		var pw *domain.PartialWriteError
		if err != nil && !(errors.As(err, &pw) && len(created) > 0) {
			return err
		}
		if pw != nil {
			g.log.Warn("Some personas could not be written", "company", company.Code, "failed", len(pw.Failed))
			sum.RecordsFailed = len(pw.Failed)
		}
		sum.RecordsCreated = len(created)
		for _, p := range created {
			opts.Report(p.Label())
		}
		return nil
	})
	if err != nil {
		return sum, err
	}
	sum.PersonasProcessed = sum.RecordsCreated
	return sum, nil
}
