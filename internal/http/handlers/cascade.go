package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/personaforge-backend/internal/domain"
	"github.com/yungbote/personaforge-backend/internal/http/response"
	"github.com/yungbote/personaforge-backend/internal/jobs/cascade"
	"github.com/yungbote/personaforge-backend/internal/jobs/progress"
	"github.com/yungbote/personaforge-backend/internal/platform/logger"
)

// CascadeRunner is implemented by *cascade.Engine.
type CascadeRunner interface {
	Run(ctx context.Context, req cascade.Request) (cascade.Summary, error)
	Start(ctx context.Context, req cascade.Request) (uuid.UUID, error)
	Progress() progress.Store
}

// CompanyLookup resolves companies and persisted runs.
type CompanyLookup interface {
	Get(ctx context.Context, code string) (*domain.Company, error)
	Run(ctx context.Context, id uuid.UUID) (*domain.CascadeRun, error)
}

type CascadeHandler struct {
	log       *logger.Logger
	engine    CascadeRunner
	companies CompanyLookup
}

func NewCascadeHandler(log *logger.Logger, engine CascadeRunner, companies CompanyLookup) *CascadeHandler {
	return &CascadeHandler{
		log:       log.With("handler", "CascadeHandler"),
		engine:    engine,
		companies: companies,
	}
}

type cascadeRequest struct {
	CompanyCode string `json:"empresaCodigo" binding:"required"`
	ExecuteAll  bool   `json:"executeAll"`
	ScriptID    string `json:"scriptId"`
	ForceMode   bool   `json:"forceMode"`
	Async       bool   `json:"async"`
	RunID       string `json:"runId" binding:"omitempty,uuid"`
}

// POST /api/cascade
func (h *CascadeHandler) Trigger(c *gin.Context) {
	var body cascadeRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if !body.ExecuteAll && body.ScriptID == "" {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", cascade.ErrInvalidRequest)
		return
	}
	ctx := c.Request.Context()
	company, err := h.companies.Get(ctx, body.CompanyCode)
	if err != nil {
		response.RespondFailure(c, err)
		return
	}
	req := cascade.Request{
		CompanyID:  company.ID,
		ExecuteAll: body.ExecuteAll,
		StageID:    domain.StageID(body.ScriptID),
		ForceMode:  body.ForceMode,
	}
	if body.RunID != "" {
		req.RunID = uuid.MustParse(body.RunID)
	}

	if body.Async {
		runID, err := h.engine.Start(ctx, req)
		if err != nil {
			h.reject(c, company, err)
			return
		}
		response.RespondAccepted(c, gin.H{
			"runId":     runID,
			"statusUrl": "/api/cascade/runs/" + runID.String(),
		})
		return
	}

	sum, err := h.engine.Run(ctx, req)
	if err != nil {
		h.reject(c, company, err)
		return
	}
	response.RespondOK(c, sum)
}

func (h *CascadeHandler) reject(c *gin.Context, company *domain.Company, err error) {
	if errors.Is(err, domain.ErrCompanyBusy) {
		h.log.Warn("Cascade rejected, company busy", "company", company.Code)
	}
	response.RespondFailure(c, err)
}

// GET /api/cascade
func (h *CascadeHandler) Stages(c *gin.Context) {
	response.RespondOK(c, gin.H{"stages": cascade.Catalogue()})
}

// GET /api/cascade/runs/:id
func (h *CascadeHandler) GetRun(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_run_id", err)
		return
	}
	ctx := c.Request.Context()
	snap, err := h.engine.Progress().Get(ctx, runID)
	if err != nil {
		h.log.Warn("Progress lookup failed", "run_id", runID, "error", err)
	}
	run, err := h.companies.Run(ctx, runID)
	var nf *domain.NotFoundError
	if err != nil && !errors.As(err, &nf) {
		response.RespondFailure(c, err)
		return
	}
	if snap == nil && run == nil {
		response.RespondFailure(c, &domain.NotFoundError{Entity: "cascade run", Key: runID.String()})
		return
	}
	response.RespondOK(c, gin.H{"progress": snap, "run": run})
}
