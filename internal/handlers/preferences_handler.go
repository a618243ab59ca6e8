package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xpanvictor/civicguru/internal/domains/auth"
	"github.com/xpanvictor/civicguru/internal/domains/preferences"
	"github.com/xpanvictor/civicguru/internal/types"
	"github.com/xpanvictor/civicguru/pkg/Logger"
	"github.com/xpanvictor/civicguru/pkg/audio/playback"
)

// PreferenceHandler serves voice settings and pinned messages
type PreferenceHandler struct {
	prefService preferences.PreferenceService
	logger      *Logger.Logger
}

func NewPreferenceHandler(prefService preferences.PreferenceService, logger *Logger.Logger) *PreferenceHandler {
	return &PreferenceHandler{
		prefService: prefService,
		logger:      logger,
	}
}

func toPreference(v playback.VoiceSettings) types.VoicePreference {
	return types.VoicePreference{Rate: v.Rate, Pitch: v.Pitch, Volume: v.Volume}
}

// GetVoice returns the playback settings
// @Summary Get voice settings
// @Tags Preferences
// @Produce json
// @Security BearerAuth
// @Success 200 {object} VoiceResponse "Voice settings"
// @Failure 401 {object} ErrorResponse "User not authenticated"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /preferences/voice [get]
func (h *PreferenceHandler) GetVoice(c *gin.Context) {
	userInfo, ok := ExtractUserInfo(c)
	if !ok {
		return
	}

	v, err := h.prefService.Voice(c.Request.Context(), userInfo.UserID)
	if err != nil {
		h.logger.Errorf("get voice error: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, VoiceResponse{Voice: toPreference(v)})
}

// UpdateVoice stores the playback settings
// @Summary Update voice settings
// @Description Rate and pitch are clamped to 0.5-2, volume to 0-1. Open sessions pick the change up on their next voice
// @Tags Preferences
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body types.VoicePreference true "Voice settings"
// @Success 200 {object} VoiceResponse "Stored voice settings"
// @Failure 400 {object} ErrorResponse "Invalid request data"
// @Failure 401 {object} ErrorResponse "User not authenticated"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /preferences/voice [put]
func (h *PreferenceHandler) UpdateVoice(c *gin.Context) {
	userInfo, ok := ExtractUserInfo(c)
	if !ok {
		return
	}

	var req types.VoicePreference
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request data",
			Details: err.Error(),
		})
		return
	}

	v, err := h.prefService.SetVoice(c.Request.Context(), userInfo.UserID, req)
	if err != nil {
		h.logger.Errorf("set voice error: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, VoiceResponse{Voice: toPreference(v)})
}

// ListPins returns pinned messages
// @Summary List pinned messages
// @Tags Preferences
// @Produce json
// @Security BearerAuth
// @Success 200 {object} ListPinsResponse "Pinned messages, newest first"
// @Failure 401 {object} ErrorResponse "User not authenticated"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /pins [get]
func (h *PreferenceHandler) ListPins(c *gin.Context) {
	userInfo, ok := ExtractUserInfo(c)
	if !ok {
		return
	}

	pins, err := h.prefService.Pins(c.Request.Context(), userInfo.UserID)
	if err != nil {
		h.logger.Errorf("list pins error: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
		return
	}
	if pins == nil {
		pins = []types.PinnedMessage{}
	}
	c.JSON(http.StatusOK, ListPinsResponse{Pins: pins})
}

// CreatePin pins a transcript message
// @Summary Pin a message
// @Description At most 10 pins; a message is identified by its timestamp
// @Tags Preferences
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body types.CreatePin true "Message to pin"
// @Success 201 {object} PinResponse "Message pinned"
// @Failure 400 {object} ErrorResponse "Invalid request data"
// @Failure 401 {object} ErrorResponse "User not authenticated"
// @Failure 409 {object} ErrorResponse "Already pinned or pin limit reached"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /pins [post]
func (h *PreferenceHandler) CreatePin(c *gin.Context) {
	userInfo, ok := ExtractUserInfo(c)
	if !ok {
		return
	}

	var req types.CreatePin
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request data",
			Details: err.Error(),
		})
		return
	}

	pin, err := h.prefService.Pin(c.Request.Context(), userInfo.UserID, req)
	if err != nil {
		switch {
		case errors.Is(err, preferences.ErrPinLimit), errors.Is(err, preferences.ErrAlreadyPinned):
			c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
		default:
			h.logger.Errorf("pin error: %v", err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
		}
		return
	}
	c.JSON(http.StatusCreated, PinResponse{Message: "Message pinned", Pin: *pin})
}

// DeletePin unpins a message
// @Summary Unpin a message
// @Tags Preferences
// @Security BearerAuth
// @Param timestamp path string true "RFC 3339 timestamp of the pinned message"
// @Success 204 "Pin removed"
// @Failure 400 {object} ErrorResponse "Invalid timestamp"
// @Failure 401 {object} ErrorResponse "User not authenticated"
// @Failure 404 {object} ErrorResponse "Pin not found"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /pins/{timestamp} [delete]
func (h *PreferenceHandler) DeletePin(c *gin.Context) {
	userInfo, ok := ExtractUserInfo(c)
	if !ok {
		return
	}
	ts, err := time.Parse(time.RFC3339Nano, c.Param("timestamp"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid timestamp", Details: err.Error()})
		return
	}

	if err := h.prefService.Unpin(c.Request.Context(), userInfo.UserID, ts); err != nil {
		switch {
		case errors.Is(err, preferences.ErrPinNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Pin not found"})
		default:
			h.logger.Errorf("unpin error: %v", err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
		}
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *PreferenceHandler) RegisterPreferenceRoutes(r *gin.RouterGroup, authService auth.AuthService) {
	protected := r.Group("")
	protected.Use(AuthMiddleware(authService, h.logger))
	{
		protected.GET("/preferences/voice", h.GetVoice)
		protected.PUT("/preferences/voice", h.UpdateVoice)
		protected.GET("/pins", h.ListPins)
		protected.POST("/pins", h.CreatePin)
		protected.DELETE("/pins/:timestamp", h.DeletePin)
	}
}
