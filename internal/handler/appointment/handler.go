package appointment

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/famalink/telemed-api/internal/handler"
	"github.com/famalink/telemed-api/internal/middleware"
	"github.com/famalink/telemed-api/internal/model"
	"github.com/famalink/telemed-api/internal/service/appointment"
	"github.com/famalink/telemed-api/pkg/httputil"
)

type TodayLister interface {
	Today(ctx context.Context, doctorID uuid.UUID) ([]*model.AppointmentWithPatient, error)
}

type Handler struct {
	service  appointment.Service
	today    TodayLister
	location *time.Location
}

func NewHandler(service appointment.Service, today TodayLister, location *time.Location) *Handler {
	if location == nil {
		location = time.UTC
	}
	return &Handler{service: service, today: today, location: location}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	appointments := r.Group("/appointments")
	{
		appointments.POST("", h.CreateAppointment)
		appointments.GET("", h.ListAppointments)
		appointments.GET("/today", h.TodayAppointments)
		appointments.GET("/:id", h.GetAppointment)
		appointments.PATCH("/:id/status", h.UpdateStatus)
	}
}

func (h *Handler) CreateAppointment(c *gin.Context) {
	var req model.CreateAppointmentRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	created, err := h.service.Create(c.Request.Context(), middleware.DoctorID(c), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondCreated(c, created)
}

// ListAppointments returns the appointments starting in [start, end].
func (h *Handler) ListAppointments(c *gin.Context) {
	start, ok := handler.QueryTime(c, "start", h.location)
	if !ok {
		return
	}
	end, ok := handler.QueryTime(c, "end", h.location)
	if !ok {
		return
	}

	items, err := h.service.ListInRange(c.Request.Context(), middleware.DoctorID(c), start, end)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, items)
}

func (h *Handler) TodayAppointments(c *gin.Context) {
	items, err := h.today.Today(c.Request.Context(), middleware.DoctorID(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, items)
}

func (h *Handler) GetAppointment(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	a, err := h.service.Get(c.Request.Context(), middleware.DoctorID(c), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, a)
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.UpdateAppointmentStatusRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	updated, err := h.service.UpdateStatus(c.Request.Context(), middleware.DoctorID(c), id, req.Status)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, updated)
}
