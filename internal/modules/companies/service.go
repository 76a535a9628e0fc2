package companies

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/yungbote/personaforge-backend/internal/data/repos"
	"github.com/yungbote/personaforge-backend/internal/domain"
	"github.com/yungbote/personaforge-backend/internal/platform/dbctx"
	"github.com/yungbote/personaforge-backend/internal/platform/logger"
)

var ErrInvalidInput = errors.New("invalid company input")

// ValidationError lists the offending fields of a create or update request.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid company fields: " + strings.Join(e.Fields, ", ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

type CreateInput struct {
	Code          string   `json:"code" validate:"required,alphanum,min=2,max=16"`
	Name          string   `json:"name" validate:"required,max=200"`
	Industry      string   `json:"industry" validate:"max=120"`
	Country       string   `json:"country" validate:"required,iso3166_1_alpha2"`
	Languages     []string `json:"languages" validate:"dive,bcp47_language_tag"`
	TotalPersonas int      `json:"totalPersonas" validate:"min=1,max=200"`
}

// UpdateInput is a partial update; nil fields are left untouched.
type UpdateInput struct {
	Name          *string  `json:"name" validate:"omitempty,min=1,max=200"`
	Industry      *string  `json:"industry" validate:"omitempty,max=120"`
	Country       *string  `json:"country" validate:"omitempty,iso3166_1_alpha2"`
	Languages     []string `json:"languages" validate:"omitempty,dive,bcp47_language_tag"`
	TotalPersonas *int     `json:"totalPersonas" validate:"omitempty,min=1,max=200"`
	Status        *string  `json:"status" validate:"omitempty,oneof=active inactive"`
}

type Service struct {
	log      *logger.Logger
	repos    *repos.Set
	validate *validator.Validate
}

func NewService(baseLog *logger.Logger, set *repos.Set) *Service {
	return &Service{
		log:      baseLog.With("service", "CompanyService"),
		repos:    set,
		validate: validator.New(),
	}
}

func (s *Service) check(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
	}
	return &ValidationError{Fields: fields}
}

func (s *Service) List(ctx context.Context, status string) ([]*domain.Company, error) {
	return s.repos.Companies.List(dbctx.Background(ctx), status)
}

// Get resolves a company by code, returning a NotFoundError when absent.
func (s *Service) Get(ctx context.Context, code string) (*domain.Company, error) {
	c, err := s.repos.Companies.GetByCode(dbctx.Background(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("load company %s: %w", code, err)
	}
	if c == nil {
		return nil, &domain.NotFoundError{Entity: "company", Key: repos.NormalizeCode(code)}
	}
	return c, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*domain.Company, error) {
	c, err := s.repos.Companies.GetByID(dbctx.Background(ctx), id)
	if err != nil {
		return nil, fmt.Errorf("load company %s: %w", id, err)
	}
	if c == nil {
		return nil, &domain.NotFoundError{Entity: "company", Key: id.String()}
	}
	return c, nil
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Company, error) {
	if in.TotalPersonas == 0 {
		in.TotalPersonas = 16
	}
	if len(in.Languages) == 0 {
		in.Languages = []string{"en"}
	}
	in.Country = strings.ToUpper(strings.TrimSpace(in.Country))
	if err := s.check(in); err != nil {
		return nil, err
	}
	c, err := s.repos.Companies.Create(dbctx.Background(ctx), &domain.Company{
		Code:          in.Code,
		Name:          strings.TrimSpace(in.Name),
		Industry:      strings.TrimSpace(in.Industry),
		Country:       in.Country,
		Languages:     domain.EncodeStrings(in.Languages),
		TotalPersonas: in.TotalPersonas,
		Status:        domain.CompanyStatusActive,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Company created", "company", c.Code, "total_personas", c.TotalPersonas)
	return c, nil
}

func (s *Service) Update(ctx context.Context, code string, in UpdateInput) (*domain.Company, error) {
	if in.Country != nil {
		upper := strings.ToUpper(strings.TrimSpace(*in.Country))
		in.Country = &upper
	}
	if err := s.check(in); err != nil {
		return nil, err
	}
	c, err := s.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	if in.Status != nil && c.Status == domain.CompanyStatusProcessing {
		return nil, domain.ErrCompanyBusy
	}
	updates := map[string]interface{}{}
	if in.Name != nil {
		updates["name"] = strings.TrimSpace(*in.Name)
	}
	if in.Industry != nil {
		updates["industry"] = strings.TrimSpace(*in.Industry)
	}
	if in.Country != nil {
		updates["country"] = *in.Country
	}
	if in.Languages != nil {
		updates["languages"] = domain.EncodeStrings(in.Languages)
	}
	if in.TotalPersonas != nil {
		updates["total_personas"] = *in.TotalPersonas
	}
	if in.Status != nil {
		updates["status"] = *in.Status
	}
	if len(updates) == 0 {
		return c, nil
	}
	if err := s.repos.Companies.Update(dbctx.Background(ctx), c.ID, updates); err != nil {
		return nil, fmt.Errorf("update company %s: %w", c.Code, err)
	}
	return s.GetByID(ctx, c.ID)
}

func (s *Service) Personas(ctx context.Context, code string) ([]*domain.Persona, error) {
	c, err := s.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.repos.Personas.ListByCompany(dbctx.Background(ctx), c.ID)
}

func (s *Service) Runs(ctx context.Context, code string, limit int) ([]*domain.CascadeRun, error) {
	c, err := s.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.repos.Runs.ListByCompany(dbctx.Background(ctx), c.ID, limit)
}

func (s *Service) Run(ctx context.Context, id uuid.UUID) (*domain.CascadeRun, error) {
	run, err := s.repos.Runs.GetByID(dbctx.Background(ctx), id)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, &domain.NotFoundError{Entity: "cascade run", Key: id.String()}
	}
	return run, nil
}
