package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/personaforge-backend/internal/data/repos"
	"github.com/yungbote/personaforge-backend/internal/domain"
	"github.com/yungbote/personaforge-backend/internal/http/response"
	"github.com/yungbote/personaforge-backend/internal/modules/companies"
	"github.com/yungbote/personaforge-backend/internal/modules/status"
)

type StatusRefresher interface {
	Refresh(ctx context.Context, companyID uuid.UUID) (status.View, error)
}

type CompanyHandler struct {
	companies *companies.Service
	status    StatusRefresher
}

func NewCompanyHandler(companies *companies.Service, status StatusRefresher) *CompanyHandler {
	return &CompanyHandler{companies: companies, status: status}
}

// GET /api/companies
func (h *CompanyHandler) List(c *gin.Context) {
	list, err := h.companies.List(c.Request.Context(), c.Query("status"))
	if err != nil {
		response.RespondFailure(c, err)
		return
	}
	response.RespondOK(c, gin.H{"companies": list})
}

// POST /api/companies
func (h *CompanyHandler) Create(c *gin.Context) {
	var in companies.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	company, err := h.companies.Create(c.Request.Context(), in)
	if err != nil {
		respondCompanyError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"company": company})
}

// GET /api/companies/:code
func (h *CompanyHandler) Get(c *gin.Context) {
	company, err := h.companies.Get(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.RespondFailure(c, err)
		return
	}
	response.RespondOK(c, gin.H{"company": company})
}

// PATCH /api/companies/:code
func (h *CompanyHandler) Update(c *gin.Context) {
	var in companies.UpdateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	company, err := h.companies.Update(c.Request.Context(), c.Param("code"), in)
	if err != nil {
		respondCompanyError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"company": company})
}

// GET /api/companies/:code/status
func (h *CompanyHandler) Status(c *gin.Context) {
	ctx := c.Request.Context()
	company, err := h.companies.Get(ctx, c.Param("code"))
	if err != nil {
		response.RespondFailure(c, err)
		return
	}
	view, err := h.status.Refresh(ctx, company.ID)
	if err != nil {
		response.RespondFailure(c, err)
		return
	}
	response.RespondOK(c, view)
}

// GET /api/companies/:code/personas
func (h *CompanyHandler) Personas(c *gin.Context) {
	list, err := h.companies.Personas(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.RespondFailure(c, err)
		return
	}
	response.RespondOK(c, gin.H{"personas": list})
}

// GET /api/companies/:code/runs
func (h *CompanyHandler) Runs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	runs, err := h.companies.Runs(c.Request.Context(), c.Param("code"), limit)
	if err != nil {
		response.RespondFailure(c, err)
		return
	}
	response.RespondOK(c, gin.H{"runs": runs})
}

func respondCompanyError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, companies.ErrInvalidInput):
		response.RespondError(c, http.StatusBadRequest, "invalid_company", err)
	case errors.Is(err, repos.ErrDuplicateCode):
		response.RespondError(c, http.StatusConflict, "duplicate_code", err)
	case errors.Is(err, domain.ErrCompanyBusy):
		response.RespondError(c, http.StatusConflict, "company_busy", err)
	default:
		response.RespondFailure(c, err)
	}
}
