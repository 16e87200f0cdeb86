package calendar

import (
	"github.com/gin-gonic/gin"

	"github.com/famalink/telemed-api/internal/handler"
	"github.com/famalink/telemed-api/internal/middleware"
	"github.com/famalink/telemed-api/internal/service/calendar"
	apperrors "github.com/famalink/telemed-api/pkg/errors"
	"github.com/famalink/telemed-api/pkg/httputil"
)

type Handler struct {
	service calendar.Service
}

func NewHandler(service calendar.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	cal := r.Group("/calendar")
	{
		cal.GET("/week", h.Week)
		cal.GET("/day", h.Day)
	}
}

// Week renders the week containing ?date= (default today), moved by ?nav=.
func (h *Handler) Week(c *gin.Context) {
	ref, ok := handler.QueryDate(c, "date", h.service.Grid().Location())
	if !ok {
		return
	}
	nav, err := calendar.ParseNavigation(c.Query("nav"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest(err.Error(), err))
		return
	}

	view, err := h.service.Week(c.Request.Context(), middleware.DoctorID(c), ref, nav)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, view)
}

func (h *Handler) Day(c *gin.Context) {
	date, ok := handler.QueryDate(c, "date", h.service.Grid().Location())
	if !ok {
		return
	}

	view, err := h.service.Day(c.Request.Context(), middleware.DoctorID(c), date)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, view)
}
