package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/personaforge-backend/internal/domain"
	"github.com/yungbote/personaforge-backend/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}

func RespondAccepted(c *gin.Context, payload any) {
	c.JSON(http.StatusAccepted, payload)
}

// RespondFailure maps err onto a status and code. Typed domain errors keep
// their meaning; anything else is a 500.
func RespondFailure(c *gin.Context, err error) {
	ae := Classify(err)
	RespondError(c, ae.Status, ae.Code, err)
}

func Classify(err error) *apierr.Error {
	var (
		ae   *apierr.Error
		nf   *domain.NotFoundError
		nd   *domain.NoDataError
		us   *domain.UnknownStageError
		te   *domain.TimeoutError
		ext  *domain.ExternalServiceError
		conf *domain.ConfigurationError
	)
	switch {
	case errors.As(err, &ae):
		return ae
	case errors.As(err, &nf):
		return apierr.NotFound(nf.Entity+"_not_found", err)
	case errors.As(err, &nd):
		return apierr.Unprocessable("no_data", err)
	case errors.As(err, &us):
		return apierr.BadRequest("unknown_stage", err)
	case errors.Is(err, domain.ErrCompanyBusy):
		return apierr.Conflict("company_busy", err)
	case errors.Is(err, domain.ErrRunExists):
		return apierr.Conflict("duplicate_run", err)
	case errors.As(err, &te):
		return apierr.GatewayTimeout("stage_timeout", err)
	case errors.As(err, &ext):
		return apierr.BadGateway("upstream_error", err)
	case errors.As(err, &conf):
		return apierr.Unavailable("misconfigured", err)
	default:
		return apierr.Internal(err)
	}
}
