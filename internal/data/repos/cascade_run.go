package repos

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/personaforge-backend/internal/domain"
	"github.com/yungbote/personaforge-backend/internal/platform/dbctx"
	"github.com/yungbote/personaforge-backend/internal/platform/logger"
)

type CascadeRunRepo interface {
	Create(dbc dbctx.Context, run *domain.CascadeRun) (*domain.CascadeRun, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.CascadeRun, error)
	ListByCompany(dbc dbctx.Context, companyID uuid.UUID, limit int) ([]*domain.CascadeRun, error)
}

type cascadeRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCascadeRunRepo(db *gorm.DB, baseLog *logger.Logger) CascadeRunRepo {
	return &cascadeRunRepo{db: db, log: baseLog.With("repo", "CascadeRunRepo")}
}

func (r *cascadeRunRepo) Create(dbc dbctx.Context, run *domain.CascadeRun) (*domain.CascadeRun, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(dbc.Context()).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

func (r *cascadeRunRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(updates) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Context()).
		Model(&domain.CascadeRun{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *cascadeRunRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.CascadeRun, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*domain.CascadeRun
	if err := transaction.WithContext(dbc.Context()).Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *cascadeRunRepo) ListByCompany(dbc dbctx.Context, companyID uuid.UUID, limit int) ([]*domain.CascadeRun, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var out []*domain.CascadeRun
	if err := transaction.WithContext(dbc.Context()).
		Where("company_id = ?", companyID).
		Order("started_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
