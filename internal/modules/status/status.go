package status

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/personaforge-backend/internal/data/repos"
	"github.com/yungbote/personaforge-backend/internal/data/repos/store"
	"github.com/yungbote/personaforge-backend/internal/domain"
	"github.com/yungbote/personaforge-backend/internal/platform/dbctx"
	"github.com/yungbote/personaforge-backend/internal/platform/logger"
)

// StageStatus is the derived completion of one stage.
type StageStatus struct {
	Stage    domain.StageID `json:"stage"`
	Complete bool           `json:"complete"`
}

// View is the recomputed completion of every stage for one company.
type View struct {
	CompanyID   uuid.UUID               `json:"companyId"`
	CompanyCode string                  `json:"companyCode"`
	Personas    int64                   `json:"personas"`
	Stages      []StageStatus           `json:"stages"`
	Flags       map[domain.StageID]bool `json:"flags"`
	ComputedAt  time.Time               `json:"computedAt"`
}

func (v View) Complete(stage domain.StageID) bool { return v.Flags[stage] }

type predicate func(dbc dbctx.Context, companyID uuid.UUID) (bool, error)

// Service derives stage completion from the data itself; the company's
// stored flags are only ever written as a cache.
type Service struct {
	repos      *repos.Set
	log        *logger.Logger
	predicates map[domain.StageID]predicate
}

func NewService(baseLog *logger.Logger, set *repos.Set) *Service {
	byCompany := func(id uuid.UUID) store.Filter { return store.Filter{"company_id": id} }
	return &Service{
		repos: set,
		log:   baseLog.With("service", "StatusService"),
		predicates: map[domain.StageID]predicate{
			domain.StagePersonas: func(dbc dbctx.Context, id uuid.UUID) (bool, error) {
				n, err := set.Personas.Count(dbc, id)
				return n > 0, err
			},
			domain.StageBiographies: func(dbc dbctx.Context, id uuid.UUID) (bool, error) {
				return set.Biographies.Exists(dbc, byCompany(id), store.NonEmpty("text"))
			},
			domain.StageCompetencies: func(dbc dbctx.Context, id uuid.UUID) (bool, error) {
				return set.Competencies.Exists(dbc, byCompany(id))
			},
			domain.StageTechSpecs: func(dbc dbctx.Context, id uuid.UUID) (bool, error) {
				return set.TechSpecs.Exists(dbc, byCompany(id))
			},
			domain.StageTasksGoals: func(dbc dbctx.Context, id uuid.UUID) (bool, error) {
				tasks, err := set.Tasks.Exists(dbc, byCompany(id))
				if err != nil || !tasks {
					return false, err
				}
				return set.Goals.Exists(dbc, byCompany(id))
			},
			domain.StageKnowledge: func(dbc dbctx.Context, id uuid.UUID) (bool, error) {
				return set.Knowledge.Exists(dbc, byCompany(id))
			},
			domain.StageWorkflows: func(dbc dbctx.Context, id uuid.UUID) (bool, error) {
				return set.Workflows.Exists(dbc, byCompany(id))
			},
			domain.StageAvatarPrompts: func(dbc dbctx.Context, id uuid.UUID) (bool, error) {
				return set.Avatars.Exists(dbc, byCompany(id), store.NonEmpty("prompt"))
			},
			domain.StageAvatarImages: func(dbc dbctx.Context, id uuid.UUID) (bool, error) {
				return set.Avatars.Exists(dbc, byCompany(id), store.NonEmpty("image_url"))
			},
			domain.StageAvatarFiles: func(dbc dbctx.Context, id uuid.UUID) (bool, error) {
				return set.Avatars.Exists(dbc, byCompany(id), store.NonEmpty("local_path"))
			},
			domain.StageAudit: func(dbc dbctx.Context, id uuid.UUID) (bool, error) {
				return set.Audits.Exists(dbc, byCompany(id))
			},
		},
	}
}

func (s *Service) company(dbc dbctx.Context, companyID uuid.UUID) (*domain.Company, error) {
	company, err := s.repos.Companies.GetByID(dbc, companyID)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, &domain.NotFoundError{Entity: "company", Key: companyID.String()}
	}
	return company, nil
}

// Compute evaluates every stage predicate. It never reads the stored flags.
func (s *Service) Compute(ctx context.Context, companyID uuid.UUID) (View, error) {
	dbc := dbctx.Background(ctx)
	company, err := s.company(dbc, companyID)
	if err != nil {
		return View{}, err
	}
	personas, err := s.repos.Personas.Count(dbc, companyID)
	if err != nil {
		return View{}, err
	}
	view := View{
		CompanyID:   company.ID,
		CompanyCode: company.Code,
		Personas:    personas,
		Stages:      make([]StageStatus, 0, len(domain.StageOrder)),
		Flags:       make(map[domain.StageID]bool, len(domain.StageOrder)),
		ComputedAt:  time.Now().UTC(),
	}
	for _, stage := range domain.StageOrder {
		done, err := s.predicates[stage](dbc, companyID)
		if err != nil {
			return View{}, fmt.Errorf("status %s: %w", stage, err)
		}
		view.Stages = append(view.Stages, StageStatus{Stage: stage, Complete: done})
		view.Flags[stage] = done
	}
	return view, nil
}

// IsComplete evaluates a single stage.
func (s *Service) IsComplete(ctx context.Context, companyID uuid.UUID, stage domain.StageID) (bool, error) {
	pred, ok := s.predicates[stage]
	if !ok {
		return false, &domain.UnknownStageError{Stage: string(stage)}
	}
	return pred(dbctx.Background(ctx), companyID)
}

// Refresh computes the view and overwrites the company's cached flags with it.
func (s *Service) Refresh(ctx context.Context, companyID uuid.UUID) (View, error) {
	view, err := s.Compute(ctx, companyID)
	if err != nil {
		return View{}, err
	}
	if err := s.repos.Companies.UpdateStageFlags(dbctx.Background(ctx), companyID, domain.EncodeJSON(view.Flags), view.ComputedAt); err != nil {
		s.log.Warn("Stage flag cache update failed", "company", view.CompanyCode, "error", err)
	}
	return view, nil
}
