package session

import (
	"errors"

	"github.com/xpanvictor/civicguru/internal/constants/prompts"
	"github.com/xpanvictor/civicguru/internal/types"
	"github.com/xpanvictor/civicguru/pkg/assistant/gateway"
	"github.com/xpanvictor/civicguru/pkg/io/mic"
	"github.com/xpanvictor/civicguru/pkg/io/stt"
)

var (
	ErrConfigMissing = errors.New("session: AI credential not configured")
	ErrInvalidState  = errors.New("session: action not allowed in current state")
	ErrNothingToSend = errors.New("session: nothing to send")
	ErrClosed        = errors.New("session: controller stopped")
)

// UserError is what the user sees after a failure.
type UserError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func classify(err error) (code string, key prompts.MessageKey) {
	switch {
	case errors.Is(err, ErrConfigMissing):
		return "config_missing", prompts.MsgAPIKeyMissing
	case errors.Is(err, mic.ErrPermissionDenied):
		return "permission_denied", prompts.MsgStartFailed
	case errors.Is(err, mic.ErrDeviceUnavailable):
		return "device_unavailable", prompts.MsgStartFailed
	case errors.Is(err, stt.ErrUnsupportedPlatform):
		return "unsupported_platform", prompts.MsgRecognizerUnsupported
	case errors.Is(err, gateway.ErrGenerationFailed):
		return "generation_failed", prompts.MsgSessionError
	case errors.Is(err, gateway.ErrSynthesisFailed):
		return "synthesis_failed", prompts.MsgSessionError
	case errors.Is(err, gateway.ErrServiceUnavailable):
		return "service_unavailable", prompts.MsgSessionError
	}
	return "session_error", prompts.MsgSessionError
}

func userError(lang types.Language, err error) *UserError {
	code, key := classify(err)
	return &UserError{Code: code, Message: prompts.Message(lang, key)}
}
