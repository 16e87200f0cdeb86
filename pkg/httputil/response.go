package httputil

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	apperrors "github.com/famalink/telemed-api/pkg/errors"
)

// Response wraps all API responses
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// Pagination represents pagination metadata
type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

// PaginatedResponse wraps paginated data
type PaginatedResponse struct {
	Items      interface{} `json:"items"`
	Pagination Pagination  `json:"pagination"`
}

var statusByCode = map[apperrors.ErrorCode]int{
	apperrors.ErrNotFound:     http.StatusNotFound,
	apperrors.ErrBadRequest:   http.StatusBadRequest,
	apperrors.ErrUnauthorized: http.StatusUnauthorized,
	apperrors.ErrForbidden:    http.StatusForbidden,
	apperrors.ErrInternal:     http.StatusInternalServerError,
	apperrors.ErrConflict:     http.StatusConflict,
	apperrors.ErrUnavailable:  http.StatusServiceUnavailable,

	apperrors.ErrTooManyRequests: http.StatusTooManyRequests,
}

// StatusFor maps an error to its HTTP status. Errors outside the AppError
// family are internal.
func StatusFor(err error) int {
	if status, ok := statusByCode[apperrors.CodeOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func RespondWithSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Status: "success", Data: data})
}

func RespondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Status: "success", Data: data})
}

func RespondWithMessage(c *gin.Context, status int, message string) {
	c.JSON(status, Response{Status: "success", Message: message})
}

// RespondWithError sends an error response. Internal failures are logged and
// their cause is never echoed to the client.
func RespondWithError(c *gin.Context, err error) {
	status := StatusFor(err)

	resp := Response{Status: "error", Message: "internal server error"}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && status != http.StatusInternalServerError {
		resp.Message = appErr.Message
		resp.Details = appErr.Details
	}

	if status >= http.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("request_id", c.GetString("request_id")).
			Str("path", c.Request.URL.Path).
			Str("method", c.Request.Method).
			Msg("Request failed")
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, resp)
}

func RespondWithPagination(c *gin.Context, items interface{}, limit, offset, total int) {
	c.JSON(http.StatusOK, Response{
		Status: "success",
		Data: PaginatedResponse{
			Items:      items,
			Pagination: Pagination{Limit: limit, Offset: offset, Total: total},
		},
	})
}
