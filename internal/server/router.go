package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/showcall/backend/internal/export"
	"github.com/MarcoPoloResearchLab/showcall/backend/internal/hub"
	"github.com/MarcoPoloResearchLab/showcall/backend/internal/protocol"
	"github.com/MarcoPoloResearchLab/showcall/backend/internal/sessions"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	ws "github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var errMissingCoordinator = errors.New("hub coordinator dependency required")

// Coordinator is the subset of the hub the HTTP layer drives.
type Coordinator interface {
	Connect(ctx context.Context, client hub.Client, remoteAddr string, role sessions.Role) (sessions.Session, error)
	Disconnect(ctx context.Context, sessionID string) error
	HandleMessage(ctx context.Context, sessionID string, message protocol.Inbound) error
	Export(ctx context.Context, format export.Format) (export.Result, error)
}

type Dependencies struct {
	Coordinator    Coordinator
	AllowedOrigins []string
	Logger         *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Coordinator == nil {
		return nil, errMissingCoordinator
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(deps.AllowedOrigins...))

	handler := &httpHandler{
		coordinator: deps.Coordinator,
		upgrader:    newUpgrader(deps.AllowedOrigins),
		logger:      logger,
	}

	router.GET("/healthz", handler.handleHealth)
	router.GET("/export", handler.handleExport)
	router.GET("/ws", handler.handleWebsocket)

	return router, nil
}

func corsMiddleware(origins ...string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{"Content-Type"},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 0 {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
	}
	return cors.New(config)
}

type httpHandler struct {
	coordinator Coordinator
	upgrader    ws.Upgrader
	logger      *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) handleExport(c *gin.Context) {
	format := export.Format(c.DefaultQuery("format", string(export.FormatJSON)))
	result, err := h.coordinator.Export(c.Request.Context(), format)
	if errors.Is(err, export.ErrUnknownFormat) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_format"})
		return
	}
	if err != nil {
		h.logger.Error("export failed", zap.String("format", string(format)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export_failed"})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Data(http.StatusOK, result.ContentType, result.Content)
}
