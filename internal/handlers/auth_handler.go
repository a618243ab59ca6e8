package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xpanvictor/civicguru/internal/domains/auth"
	"github.com/xpanvictor/civicguru/pkg/Logger"
)

// AuthHandler pairs devices
type AuthHandler struct {
	authService auth.AuthService
	logger      *Logger.Logger
}

func NewAuthHandler(authService auth.AuthService, logger *Logger.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// Pair exchanges a pairing code for a device token
// @Summary Pair a device
// @Description Verifies the pairing code and issues a bearer token for the device. The token is also accepted on /ws as ?token=
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body auth.PairRequest true "Pairing code and optional device identity"
// @Success 201 {object} PairResponse "Device paired"
// @Failure 400 {object} ErrorResponse "Invalid request data"
// @Failure 401 {object} ErrorResponse "Invalid pairing code"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /auth/token [post]
func (h *AuthHandler) Pair(c *gin.Context) {
	var req auth.PairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request data",
			Details: err.Error(),
		})
		return
	}

	tokens, err := h.authService.Pair(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCode):
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Invalid pairing code"})
		default:
			h.logger.Errorf("pairing error: %v", err)
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Pairing failed", Details: err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, PairResponse{
		Message: "Device paired successfully",
		Tokens:  *tokens,
	})
}

func (h *AuthHandler) RegisterAuthRoutes(r *gin.RouterGroup) {
	r.POST("/auth/token", h.Pair)
}
