package consultation

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/famalink/telemed-api/internal/handler"
	"github.com/famalink/telemed-api/internal/middleware"
	"github.com/famalink/telemed-api/internal/model"
	"github.com/famalink/telemed-api/internal/service/consultation"
	"github.com/famalink/telemed-api/pkg/httputil"
)

type Handler struct {
	service consultation.Service
}

func NewHandler(service consultation.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	consultations := r.Group("/consultations")
	{
		consultations.POST("", h.StartConsultation)
		consultations.GET("", h.ListConsultations)
		consultations.GET("/:id", h.GetConsultation)
		consultations.PUT("/:id/notes", h.SaveNotes)
		consultations.POST("/:id/end", h.EndConsultation)
		consultations.GET("/:id/chat-token", h.ChatToken)
		consultations.GET("/:id/prescription.pdf", h.PrescriptionPDF)
	}
	r.POST("/video-rooms", h.CreateVideoRoom)
}

func (h *Handler) StartConsultation(c *gin.Context) {
	var req model.StartConsultationRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	started, err := h.service.Start(c, middleware.DoctorID(c), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondCreated(c, started)
}

func (h *Handler) ListConsultations(c *gin.Context) {
	items, err := h.service.List(c, middleware.DoctorID(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, items)
}

func (h *Handler) GetConsultation(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	item, err := h.service.Get(c, middleware.DoctorID(c), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, item)
}

func (h *Handler) SaveNotes(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.SaveConsultationNotesRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	saved, err := h.service.SaveNotes(c, middleware.DoctorID(c), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, saved)
}

// EndConsultation accepts an optional notes body and completes the appointment.
func (h *Handler) EndConsultation(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.SaveConsultationNotesRequest
	if c.Request.ContentLength != 0 && !handler.BindJSON(c, &req) {
		return
	}

	ended, err := h.service.End(c, middleware.DoctorID(c), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, ended)
}

func (h *Handler) CreateVideoRoom(c *gin.Context) {
	var req model.CreateVideoRoomRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	url, err := h.service.VideoRoom(c.Request.Context(), middleware.DoctorID(c), req.ConsultationID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, model.VideoRoomResponse{RoomURL: url})
}

func (h *Handler) ChatToken(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	session, err := h.service.ChatSession(c.Request.Context(), middleware.DoctorID(c), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, session)
}

func (h *Handler) PrescriptionPDF(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	doc, err := h.service.Prescription(c, middleware.DoctorID(c), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=\"ordonnance-%s.pdf\"", id))
	c.Data(http.StatusOK, "application/pdf", doc)
}
