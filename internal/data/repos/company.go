package repos

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/personaforge-backend/internal/domain"
	"github.com/yungbote/personaforge-backend/internal/platform/dbctx"
	"github.com/yungbote/personaforge-backend/internal/platform/logger"
)

// ErrDuplicateCode is returned by Create when the company code is taken.
var ErrDuplicateCode = errors.New("company code already exists")

type CompanyRepo interface {
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Company, error)
	GetByCode(dbc dbctx.Context, code string) (*domain.Company, error)
	List(dbc dbctx.Context, status string) ([]*domain.Company, error)
	Create(dbc dbctx.Context, company *domain.Company) (*domain.Company, error)
	Update(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	UpdateStageFlags(dbc dbctx.Context, id uuid.UUID, flags datatypes.JSON, at time.Time) error
	SetStatus(dbc dbctx.Context, id uuid.UUID, status string) error
}

type companyRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCompanyRepo(db *gorm.DB, baseLog *logger.Logger) CompanyRepo {
	return &companyRepo{db: db, log: baseLog.With("repo", "CompanyRepo")}
}

func (r *companyRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Company, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var out []*domain.Company
	if err := transaction.WithContext(dbc.Context()).Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

// GetByCode matches case-insensitively; codes are stored upper-case.
func (r *companyRepo) GetByCode(dbc dbctx.Context, code string) (*domain.Company, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	code = NormalizeCode(code)
	if code == "" {
		return nil, nil
	}
	var out []*domain.Company
	if err := transaction.WithContext(dbc.Context()).Where("code = ?", code).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *companyRepo) List(dbc dbctx.Context, status string) ([]*domain.Company, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(dbc.Context()).Order("code ASC")
	if status = strings.TrimSpace(status); status != "" {
		q = q.Where("status = ?", status)
	}
	var out []*domain.Company
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *companyRepo) Create(dbc dbctx.Context, company *domain.Company) (*domain.Company, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	company.Code = NormalizeCode(company.Code)
	existing, err := r.GetByCode(dbc, company.Code)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateCode, company.Code)
	}
	if err := transaction.WithContext(dbc.Context()).Create(company).Error; err != nil {
		return nil, err
	}
	return company, nil
}

func (r *companyRepo) Update(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return transaction.WithContext(dbc.Context()).
		Model(&domain.Company{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *companyRepo) UpdateStageFlags(dbc dbctx.Context, id uuid.UUID, flags datatypes.JSON, at time.Time) error {
	return r.Update(dbc, id, map[string]interface{}{
		"stage_flags":    flags,
		"stage_flags_at": at,
	})
}

func (r *companyRepo) SetStatus(dbc dbctx.Context, id uuid.UUID, status string) error {
	switch status {
	case domain.CompanyStatusActive, domain.CompanyStatusInactive, domain.CompanyStatusProcessing:
	default:
		return fmt.Errorf("invalid company status %q", status)
	}
	return r.Update(dbc, id, map[string]interface{}{"status": status})
}

func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
