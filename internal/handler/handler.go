// Package handler holds the helpers shared by the HTTP handlers in its
// subpackages.
package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/famalink/telemed-api/pkg/errors"
	"github.com/famalink/telemed-api/pkg/httputil"
	"github.com/famalink/telemed-api/pkg/validator"
)

const DateLayout = "2006-01-02"

// BindJSON decodes the body into dst and answers 400 with per-field details
// when it does not validate. It reports whether the handler should go on.
func BindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		appErr := apperrors.NewBadRequest("invalid request body", err)
		if fields := validator.Describe(err); fields != nil {
			appErr.Message = fields[0].Message
			appErr.Details = fields
		}
		httputil.RespondWithError(c, appErr)
		return false
	}
	return true
}

// ParamID parses the named path parameter as a UUID, answering 400 if it is not one.
func ParamID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest("invalid "+name, err))
		return uuid.Nil, false
	}
	return id, true
}

// QueryDate parses ?name=YYYY-MM-DD in loc. A missing value yields the zero time.
func QueryDate(c *gin.Context, name string, loc *time.Location) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.ParseInLocation(DateLayout, raw, loc)
	if err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest(name+" must be YYYY-MM-DD", err))
		return time.Time{}, false
	}
	return t, true
}

// QueryTime accepts RFC 3339 or a bare date (midnight in loc).
func QueryTime(c *gin.Context, name string, loc *time.Location) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		httputil.RespondWithError(c, apperrors.NewBadRequest(name+" is required", nil))
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	t, err := time.ParseInLocation(DateLayout, raw, loc)
	if err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest(name+" must be RFC 3339 or YYYY-MM-DD", err))
		return time.Time{}, false
	}
	return t, true
}
