// Package audit records access to patient data on a dedicated zap stream,
// kept apart from the request log.
package audit

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	ActionRead   = "read"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionExport = "export"
)

type LogOptions struct {
	Changes   interface{}
	Metadata  map[string]interface{}
	IPAddress string
	UserAgent string
}

type Service struct {
	log *zap.Logger
}

// NewService writes JSON audit records to outputPaths (zap sinks such as
// "stdout" or a file path).
func NewService(outputPaths []string) (*Service, error) {
	if len(outputPaths) == 0 {
		outputPaths = []string{"stdout"}
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = outputPaths
	cfg.Sampling = nil
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	log, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build audit logger: %w", err)
	}
	return NewWithLogger(log), nil
}

func NewWithLogger(log *zap.Logger) *Service {
	return &Service{log: log.Named("audit")}
}

func NewNop() *Service {
	return NewWithLogger(zap.NewNop())
}

// Log records that doctorID performed action on an entity.
func (s *Service) Log(ctx context.Context, doctorID uuid.UUID, action, entityType string, entityID uuid.UUID, opts *LogOptions) {
	if opts == nil {
		opts = &LogOptions{}
	}

	ipAddress := opts.IPAddress
	userAgent := opts.UserAgent
	if gc, ok := ctx.(*gin.Context); ok && ipAddress == "" {
		ipAddress = gc.ClientIP()
		userAgent = gc.GetHeader("User-Agent")
	}

	fields := []zap.Field{
		zap.String("doctor_id", doctorID.String()),
		zap.String("action", action),
		zap.String("entity_type", entityType),
		zap.String("entity_id", entityID.String()),
	}
	if ipAddress != "" {
		fields = append(fields, zap.String("ip_address", ipAddress))
	}
	if userAgent != "" {
		fields = append(fields, zap.String("user_agent", userAgent))
	}
	if opts.Changes != nil {
		fields = append(fields, zap.Any("changes", opts.Changes))
	}
	if len(opts.Metadata) > 0 {
		fields = append(fields, zap.Any("metadata", opts.Metadata))
	}

	s.log.Info("patient data access", fields...)
}

func (s *Service) Sync() error {
	return s.log.Sync()
}
