package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/Baaaki/taskvault/internal/config"
	"github.com/Baaaki/taskvault/internal/database"
	apierrors "github.com/Baaaki/taskvault/internal/errors"
	"github.com/Baaaki/taskvault/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	APIBasePath = "/api/v1"

	healthTimeout = 2 * time.Second
)

type HealthHandler struct {
	db         *gorm.DB
	cfg        *config.Config
	taskEvents bool
}

// NewHealthHandler reports task events as a feature only when a real broker
// backs the stream.
func NewHealthHandler(db *gorm.DB, cfg *config.Config, taskEvents bool) *HealthHandler {
	return &HealthHandler{db: db, cfg: cfg, taskEvents: taskEvents}
}

// Info describes the service and its enabled features.
func (h *HealthHandler) Info(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":      "Welcome to " + h.cfg.AppName,
		"version":      h.cfg.AppVersion,
		"api_version":  "v1",
		"api_base_url": APIBasePath,
		"features": gin.H{
			"password_reset": h.cfg.PasswordResetEnabled,
			"task_events":    h.taskEvents,
		},
	})
}

// Health answers 503 when the database does not respond.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	if err := database.Ping(ctx, h.db); err != nil {
		logger.Log.Error("Health check failed", zap.Error(err))
		apierrors.ServiceUnavailable(c, "Database unreachable")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"service":     h.cfg.AppName,
		"version":     h.cfg.AppVersion,
		"api_version": "v1",
	})
}
