package repos

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/personaforge-backend/internal/data/repos/store"
	"github.com/yungbote/personaforge-backend/internal/domain"
	"github.com/yungbote/personaforge-backend/internal/platform/dbctx"
	"github.com/yungbote/personaforge-backend/internal/platform/logger"
)

type PersonaRepo interface {
	ListActiveByCompany(dbc dbctx.Context, companyID uuid.UUID) ([]*domain.Persona, error)
	ListByCompany(dbc dbctx.Context, companyID uuid.UUID) ([]*domain.Persona, error)
	Count(dbc dbctx.Context, companyID uuid.UUID) (int64, error)
	Create(dbc dbctx.Context, personas []*domain.Persona) ([]*domain.Persona, error)
	DeleteByCompany(dbc dbctx.Context, companyID uuid.UUID) (int64, error)
}

type personaRepo struct {
	db    *gorm.DB
	log   *logger.Logger
	table *store.Table[domain.Persona]
}

func NewPersonaRepo(db *gorm.DB, baseLog *logger.Logger) PersonaRepo {
	return &personaRepo{
		db:    db,
		log:   baseLog.With("repo", "PersonaRepo"),
		table: store.NewTable[domain.Persona](db, baseLog),
	}
}

func (r *personaRepo) list(dbc dbctx.Context, companyID uuid.UUID, status string) ([]*domain.Persona, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(dbc.Context()).Where("company_id = ?", companyID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []*domain.Persona
	if err := q.Order("code ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *personaRepo) ListActiveByCompany(dbc dbctx.Context, companyID uuid.UUID) ([]*domain.Persona, error) {
	return r.list(dbc, companyID, domain.PersonaStatusActive)
}

func (r *personaRepo) ListByCompany(dbc dbctx.Context, companyID uuid.UUID) ([]*domain.Persona, error) {
	return r.list(dbc, companyID, "")
}

func (r *personaRepo) Count(dbc dbctx.Context, companyID uuid.UUID) (int64, error) {
	return r.table.Count(dbc, store.Filter{"company_id": companyID})
}

// Create may return the written rows together with a *domain.PartialWriteError.
func (r *personaRepo) Create(dbc dbctx.Context, personas []*domain.Persona) ([]*domain.Persona, error) {
	return r.table.InsertMany(dbc, personas)
}

func (r *personaRepo) DeleteByCompany(dbc dbctx.Context, companyID uuid.UUID) (int64, error) {
	return r.table.DeleteWhere(dbc, store.Filter{"company_id": companyID})
}
