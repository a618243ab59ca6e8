// Package auth pairs devices with the server and validates their tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/xpanvictor/civicguru/pkg/Logger"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCode  = errors.New("invalid pairing code")
	ErrInvalidToken = errors.New("invalid token")
)

// Claims identify a paired device. Subject holds the device id.
type Claims struct {
	DeviceID   string `json:"deviceId"`
	DeviceName string `json:"deviceName,omitempty"`
	jwt.RegisteredClaims
}

// PairRequest
// @Description Request body for pairing a device
type PairRequest struct {
	Code       string `json:"code" example:"482913"`
	DeviceID   string `json:"deviceId,omitempty" example:"550e8400-e29b-41d4-a716-446655440000"`
	DeviceName string `json:"deviceName,omitempty" example:"kitchen-speaker"`
}

// AuthTokens
// @Description Token issued to a paired device
type AuthTokens struct {
	AccessToken string    `json:"accessToken" example:"jwt-access-token-here"`
	DeviceID    string    `json:"deviceId" example:"550e8400-e29b-41d4-a716-446655440000"`
	ExpiresAt   time.Time `json:"expiresAt" example:"2023-01-02T12:00:00Z"`
}

type AuthService interface {
	Pair(ctx context.Context, req PairRequest) (*AuthTokens, error)
	ValidateToken(ctx context.Context, token string) (*Claims, error)
}

type authService struct {
	logger    *Logger.Logger
	jwtSecret []byte
	codeHash  []byte
	tokenTTL  time.Duration
	now       func() time.Time
}

// Pair implements AuthService. With no configured code hash every request
// is accepted.
func (s *authService) Pair(ctx context.Context, req PairRequest) (*AuthTokens, error) {
	if len(s.codeHash) > 0 {
		if err := bcrypt.CompareHashAndPassword(s.codeHash, []byte(req.Code)); err != nil {
			s.logger.Warnf("pairing rejected for device %q", req.DeviceName)
			return nil, ErrInvalidCode
		}
	}

	deviceID := uuid.New()
	if req.DeviceID != "" {
		id, err := uuid.Parse(req.DeviceID)
		if err != nil {
			return nil, fmt.Errorf("invalid device id: %w", err)
		}
		deviceID = id
	}

	tokens, err := s.generateToken(deviceID.String(), req.DeviceName)
	if err != nil {
		s.logger.Errorf("error generating token: %v", err)
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	s.logger.Infof("device paired: %s", deviceID)
	return tokens, nil
}

// ValidateToken implements AuthService.
func (s *authService) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))

	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, ErrInvalidToken
	}
	if _, err := uuid.Parse(claims.DeviceID); err != nil {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func (s *authService) generateToken(deviceID, name string) (*AuthTokens, error) {
	now := s.now()
	expiresAt := now.Add(s.tokenTTL)
	claims := &Claims{
		DeviceID:   deviceID,
		DeviceName: name,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   deviceID,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, err
	}
	return &AuthTokens{AccessToken: signed, DeviceID: deviceID, ExpiresAt: expiresAt}, nil
}

// HashCode produces the bcrypt hash stored in configuration.
func HashCode(code string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// NewAuthService creates a new auth service. An empty codeHash disables
// pairing codes.
func NewAuthService(logger *Logger.Logger, jwtSecret, codeHash string, tokenTTL time.Duration) AuthService {
	if tokenTTL == 0 {
		tokenTTL = 24 * time.Hour
	}

	return &authService{
		logger:    logger.Named("auth"),
		jwtSecret: []byte(jwtSecret),
		codeHash:  []byte(codeHash),
		tokenTTL:  tokenTTL,
		now:       time.Now,
	}
}
