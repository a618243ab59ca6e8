package websocket

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/xpanvictor/civicguru/internal/config"
	"github.com/xpanvictor/civicguru/internal/domains/auth"
	"github.com/xpanvictor/civicguru/internal/domains/conversation"
	"github.com/xpanvictor/civicguru/internal/domains/preferences"
	"github.com/xpanvictor/civicguru/pkg/Logger"
	"github.com/xpanvictor/civicguru/pkg/assistant/gateway"
	"github.com/xpanvictor/civicguru/pkg/io/stt"
)

const maxMessageSize = 1 << 20

// Deps are shared by every connection.
type Deps struct {
	Config              *config.Settings
	Logger              *Logger.Logger
	AuthService         auth.AuthService
	ConversationService conversation.ConversationService
	PreferenceService   preferences.PreferenceService
	Gateway             gateway.Gateway
	// ConfigMissing starts every controller unable to start.
	ConfigMissing bool
	// Recognizer is the server-side recognizer used for clients that stream
	// audio but cannot recognize speech themselves. May be nil.
	Recognizer stt.Recognizer
}

// WebSocketHandler handles WebSocket connections and routes
type WebSocketHandler struct {
	deps              Deps
	logger            *Logger.Logger
	connectionManager *ConnectionManager
	upgrader          websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(deps Deps) *WebSocketHandler {
	logger := deps.Logger.Named("ws")
	return &WebSocketHandler{
		deps:              deps,
		logger:            logger,
		connectionManager: NewConnectionManager(logger),
		upgrader: websocket.Upgrader{
			// TODO: restrict origins once the web client has a fixed host
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// RegisterRoutes registers WebSocket routes
func (h *WebSocketHandler) RegisterRoutes(router gin.IRouter) {
	ws := router.Group("/ws")
	{
		ws.GET("", h.HandleWebSocket)
		ws.GET("/stats", h.HandleStats)
	}
}

// HandleWebSocket runs one tutoring session over a WebSocket connection
// @Summary Open a tutoring session
// @Description Upgrades to a WebSocket. The first message must be init{capabilities, language, mode}; binary frames carry PCM16 LE microphone audio at 16 kHz
// @Tags Session
// @Param token query string false "Device token from /auth/token"
// @Success 101 "Switching protocols"
// @Failure 401 {object} map[string]string "Invalid or missing token"
// @Router /ws [get]
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	ownerID, deviceName, ok := h.authenticate(c)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)

	session := NewSession(ownerID, deviceName, conn)
	h.connectionManager.RegisterConnection(session)
	defer h.connectionManager.UnregisterConnection(session.SessionID)

	newConnection(h, session).serve()
}

// authenticate resolves the owner from ?token=. Without a token the
// connection is anonymous unless a pairing code is configured.
func (h *WebSocketHandler) authenticate(c *gin.Context) (uuid.UUID, string, bool) {
	token := c.Query("token")
	if token == "" {
		if h.deps.Config.Auth.PairingCodeHash != "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Token required"})
			return uuid.Nil, "", false
		}
		h.logger.Debugf("no token provided, opening anonymous session")
		return uuid.New(), "", true
	}

	claims, err := h.deps.AuthService.ValidateToken(c.Request.Context(), token)
	if err != nil {
		h.logger.Debugf("WebSocket token validation failed: %v", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return uuid.Nil, "", false
	}
	ownerID, err := uuid.Parse(claims.DeviceID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid device id in token"})
		return uuid.Nil, "", false
	}
	return ownerID, claims.DeviceName, true
}

// HandleStats provides connection statistics
// @Summary WebSocket connection statistics
// @Tags Session
// @Produce json
// @Success 200 {object} map[string]interface{} "Active sessions"
// @Router /ws/stats [get]
func (h *WebSocketHandler) HandleStats(c *gin.Context) {
	stats := h.connectionManager.GetStats()
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"data":   stats,
	})
}

// serve reads until the client goes away.
func (cn *connection) serve() {
	defer cn.shutdown()
	cn.logger.Infof("Starting WebSocket connection handling for session %s", cn.session.SessionID)

	for {
		messageType, data, err := cn.session.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				cn.logger.Errorf("WebSocket read error: %v", err)
			} else {
				cn.logger.Infof("WebSocket connection closed for session %s", cn.session.SessionID)
			}
			return
		}
		cn.session.UpdateLastActive()

		switch messageType {
		case websocket.TextMessage:
			cn.handleTextMessage(data)
		case websocket.BinaryMessage:
			if cn.mic != nil {
				cn.mic.Push(data)
			}
		}
	}
}

func (cn *connection) handleTextMessage(data []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		cn.logger.Debugf("Failed to unmarshal WebSocket message: %v", err)
		cn.session.SendError("invalid_message", "Invalid message format")
		return
	}
	if msg.Type == MessageTypeInit {
		cn.handleInit(msg.Data)
		return
	}
	if cn.ctrl == nil {
		cn.session.SendError("init_required", "Send init before other messages")
		return
	}
	cn.reject(cn.dispatch(msg))
}

// reject reports intents the controller refused. Failures the controller
// records in its snapshot already reach the client as error messages.
func (cn *connection) reject(err error) {
	if err == nil {
		return
	}
	code, ok := rejectionCode(err)
	if !ok {
		cn.logger.Debugf("intent failed: %v", err)
		return
	}
	cn.session.SendError(code, err.Error())
}

var errInvalidRequest = errors.New("invalid request")

func decode(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return errInvalidRequest
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.Join(errInvalidRequest, err)
	}
	return nil
}

// Close shuts down the WebSocket handler
func (h *WebSocketHandler) Close() error {
	return h.connectionManager.Close()
}
