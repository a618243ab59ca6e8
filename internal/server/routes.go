package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/xpanvictor/civicguru/docs"
	"github.com/xpanvictor/civicguru/internal/config"
	"github.com/xpanvictor/civicguru/internal/domains/auth"
	"github.com/xpanvictor/civicguru/internal/domains/conversation"
	"github.com/xpanvictor/civicguru/internal/domains/preferences"
	"github.com/xpanvictor/civicguru/internal/handlers"
	"github.com/xpanvictor/civicguru/internal/handlers/websocket"
	"github.com/xpanvictor/civicguru/pkg/Logger"
	"github.com/xpanvictor/civicguru/pkg/assistant/gateway"
	"github.com/xpanvictor/civicguru/pkg/io/stt"
)

// Dependencies are the services the HTTP and WebSocket routes need.
type Dependencies struct {
	Config              *config.Settings
	Logger              *Logger.Logger
	ConversationService conversation.ConversationService
	PreferenceService   preferences.PreferenceService
	AuthService         auth.AuthService
	Gateway             gateway.Gateway
	// ConfigMissing is set when no text provider is configured.
	ConfigMissing bool
	Recognizer    stt.Recognizer
}

// Routes owns the handlers that hold connections open.
type Routes struct {
	ws *websocket.WebSocketHandler
}

// Close ends every open tutoring session.
func (r *Routes) Close() error {
	return r.ws.Close()
}

// InitializeRoutes mounts health, swagger, the REST API under /api/v1 and
// the session WebSocket.
func InitializeRoutes(r *gin.Engine, dep Dependencies) *Routes {
	logger := dep.Logger

	r.Use(handlers.CORSMiddleware())
	r.Use(handlers.RequestLoggerMiddleware(logger))
	r.Use(handlers.ErrorHandlerMiddleware(logger))

	r.GET("/", func(ctx *gin.Context) { ctx.JSON(http.StatusOK, gin.H{"message": "Server healthy"}) })
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{
			"status":         "ok",
			"config_missing": dep.ConfigMissing,
			"server_stt":     dep.Recognizer != nil,
		})
	})

	docs.SwaggerInfo.BasePath = "/api/v1"
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api/v1")
	handlers.NewAuthHandler(dep.AuthService, logger).RegisterAuthRoutes(api)
	handlers.NewConvoHandler(dep.ConversationService, logger).RegisterConversationRoutes(api, dep.AuthService)
	handlers.NewPreferenceHandler(dep.PreferenceService, logger).RegisterPreferenceRoutes(api, dep.AuthService)

	ws := websocket.NewWebSocketHandler(websocket.Deps{
		Config:              dep.Config,
		Logger:              logger,
		AuthService:         dep.AuthService,
		ConversationService: dep.ConversationService,
		PreferenceService:   dep.PreferenceService,
		Gateway:             dep.Gateway,
		ConfigMissing:       dep.ConfigMissing,
		Recognizer:          dep.Recognizer,
	})
	ws.RegisterRoutes(r)

	return &Routes{ws: ws}
}
