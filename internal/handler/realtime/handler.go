package realtime

import (
	"github.com/gin-gonic/gin"

	"github.com/famalink/telemed-api/internal/middleware"
	"github.com/famalink/telemed-api/internal/realtime"
)

type Handler struct {
	hub *realtime.Hub
}

func NewHandler(hub *realtime.Hub) *Handler {
	return &Handler{hub: hub}
}

// RegisterRoutes mounts /ws on r, which must authenticate with
// AuthenticateQuery and must not carry the request timeout.
func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/ws", h.Connect)
}

func (h *Handler) Connect(c *gin.Context) {
	h.hub.Serve(c, middleware.DoctorID(c))
}
