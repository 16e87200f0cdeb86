package auth

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/famalink/telemed-api/internal/handler"
	"github.com/famalink/telemed-api/internal/middleware"
	"github.com/famalink/telemed-api/internal/model"
	"github.com/famalink/telemed-api/pkg/auth"
	"github.com/famalink/telemed-api/pkg/httputil"
)

const registeredMessage = "Inscription réussie. Vous pouvez maintenant vous connecter."

type Service interface {
	Register(ctx context.Context, req *model.RegisterRequest) (*model.Doctor, error)
	Login(ctx context.Context, req *model.LoginRequest) (*model.Session, error)
	Logout(ctx context.Context, claims *auth.Claims) error
	CurrentDoctor(ctx context.Context, token string) (*model.Doctor, error)
}

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the public routes on public and the session routes
// on protected.
func (h *Handler) RegisterRoutes(public, protected *gin.RouterGroup) {
	open := public.Group("/auth")
	{
		open.POST("/register", h.Register)
		open.POST("/login", h.Login)
	}
	session := protected.Group("/auth")
	{
		session.POST("/logout", h.Logout)
		session.GET("/me", h.Me)
	}
}

func (h *Handler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	doctor, err := h.svc.Register(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondCreated(c, model.RegisterResponse{Message: registeredMessage, User: doctor})
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	session, err := h.svc.Login(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, session)
}

func (h *Handler) Logout(c *gin.Context) {
	if err := h.svc.Logout(c.Request.Context(), middleware.Claims(c)); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, http.StatusOK, "logged out")
}

func (h *Handler) Me(c *gin.Context) {
	token, _ := middleware.BearerToken(c.GetHeader("Authorization"))
	doctor, err := h.svc.CurrentDoctor(c.Request.Context(), token)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, doctor)
}
