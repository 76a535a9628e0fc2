package testutil

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/personaforge-backend/internal/domain"
)

func SeedCompany(tb testing.TB, ctx context.Context, tx *gorm.DB, code string, totalPersonas int) *domain.Company {
	tb.Helper()
	c := &domain.Company{
		ID:            uuid.New(),
		Code:          code,
		Name:          code + " Corp",
		Industry:      "Software",
		Country:       "US",
		Languages:     domain.EncodeStrings([]string{"en"}),
		TotalPersonas: totalPersonas,
		Status:        domain.CompanyStatusActive,
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed company: %v", err)
	}
	return c
}

// SeedPersonas inserts one active persona per role title.
func SeedPersonas(tb testing.TB, ctx context.Context, tx *gorm.DB, company *domain.Company, roles ...string) []*domain.Persona {
	tb.Helper()
	out := make([]*domain.Persona, 0, len(roles))
	for i, role := range roles {
		p := &domain.Persona{
			ID:         uuid.New(),
			CompanyID:  company.ID,
			Code:       fmt.Sprintf("%s-P-%02d", company.Code, i+1),
			FirstName:  "Test",
			LastName:   fmt.Sprintf("Person%d", i+1),
			FullName:   fmt.Sprintf("Test Person%d", i+1),
			Gender:     domain.GenderFemale,
			RoleTitle:  role,
			RoleKind:   roleKind(role),
			Department: "General",
			Email:      fmt.Sprintf("test.person.%d@%s.com", i+1, strings.ToLower(company.Code)),
			Status:     domain.PersonaStatusActive,
		}
		if err := tx.WithContext(ctx).Create(p).Error; err != nil {
			tb.Fatalf("seed persona: %v", err)
		}
		out = append(out, p)
	}
	return out
}

func roleKind(role string) string {
	lower := strings.ToLower(role)
	switch {
	case strings.Contains(lower, "assistant"):
		return domain.RoleKindAssistant
	case strings.HasPrefix(lower, "c") && len(role) == 3:
		return domain.RoleKindExecutive
	default:
		return domain.RoleKindSpecialist
	}
}
