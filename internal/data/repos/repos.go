package repos

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/personaforge-backend/internal/data/repos/store"
	"github.com/yungbote/personaforge-backend/internal/domain"
	"github.com/yungbote/personaforge-backend/internal/platform/dbctx"
	"github.com/yungbote/personaforge-backend/internal/platform/logger"
)

// Set groups every repository and attribute table over one database handle.
type Set struct {
	DB *gorm.DB

	Companies CompanyRepo
	Personas  PersonaRepo
	Runs      CascadeRunRepo

	Biographies  *store.Table[domain.PersonaBiography]
	Competencies *store.Table[domain.PersonaCompetency]
	TechSpecs    *store.Table[domain.PersonaTechSpec]
	Tasks        *store.Table[domain.PersonaTask]
	Goals        *store.Table[domain.PersonaGoal]
	Knowledge    *store.Table[domain.KnowledgeEntry]
	Workflows    *store.Table[domain.PersonaWorkflow]
	Avatars      *store.Table[domain.PersonaAvatar]
	Audits       *store.Table[domain.AuditEntry]
}

func NewSet(db *gorm.DB, baseLog *logger.Logger) *Set {
	return &Set{
		DB:           db,
		Companies:    NewCompanyRepo(db, baseLog),
		Personas:     NewPersonaRepo(db, baseLog),
		Runs:         NewCascadeRunRepo(db, baseLog),
		Biographies:  store.NewTable[domain.PersonaBiography](db, baseLog),
		Competencies: store.NewTable[domain.PersonaCompetency](db, baseLog),
		TechSpecs:    store.NewTable[domain.PersonaTechSpec](db, baseLog),
		Tasks:        store.NewTable[domain.PersonaTask](db, baseLog),
		Goals:        store.NewTable[domain.PersonaGoal](db, baseLog),
		Knowledge:    store.NewTable[domain.KnowledgeEntry](db, baseLog),
		Workflows:    store.NewTable[domain.PersonaWorkflow](db, baseLog),
		Avatars:      store.NewTable[domain.PersonaAvatar](db, baseLog),
		Audits:       store.NewTable[domain.AuditEntry](db, baseLog),
	}
}

type deleter interface {
	DeleteWhere(dbc dbctx.Context, f store.Filter) (int64, error)
	Name() string
}

// PurgeCompanyRecords deletes every attribute record of the company, keeping
// personas and the company itself. Pass a transaction in dbc to make it atomic.
func (s *Set) PurgeCompanyRecords(dbc dbctx.Context, companyID uuid.UUID) (map[string]int64, error) {
	tables := []deleter{
		s.Biographies, s.Competencies, s.TechSpecs, s.Tasks, s.Goals,
		s.Knowledge, s.Workflows, s.Avatars, s.Audits,
	}
	out := make(map[string]int64, len(tables))
	for _, t := range tables {
		n, err := t.DeleteWhere(dbc, store.Filter{"company_id": companyID})
		if err != nil {
			return out, err
		}
		out[t.Name()] = n
	}
	return out, nil
}
