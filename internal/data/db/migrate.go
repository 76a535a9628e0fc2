package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/personaforge-backend/internal/domain"
)

// Models lists every persisted model in migration order.
func Models() []any {
	return []any{
		&domain.Company{},
		&domain.Persona{},
		&domain.PersonaBiography{},
		&domain.PersonaCompetency{},
		&domain.PersonaTechSpec{},
		&domain.PersonaTask{},
		&domain.PersonaGoal{},
		&domain.KnowledgeEntry{},
		&domain.PersonaWorkflow{},
		&domain.PersonaAvatar{},
		&domain.AuditEntry{},
		&domain.CascadeRun{},
	}
}

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func (s *Service) AutoMigrateAll() error {
	s.log.Info("Auto migrating tables...")
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	return nil
}
