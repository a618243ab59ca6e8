package handlers

import (
	"github.com/xpanvictor/civicguru/internal/domains/auth"
	"github.com/xpanvictor/civicguru/internal/types"
)

// Response wrapper types for Swagger documentation

// SuccessResponse represents a generic success response
type SuccessResponse struct {
	Message string `json:"message" example:"Operation completed successfully"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error" example:"Something went wrong"`
	Details string `json:"details,omitempty" example:"Validation error details"`
}

// PairResponse represents the response for device pairing
type PairResponse struct {
	Message string          `json:"message" example:"Device paired successfully"`
	Tokens  auth.AuthTokens `json:"tokens"`
}

// ConversationResponse represents the response for getting a conversation
type ConversationResponse struct {
	Conversation types.Conversation `json:"conversation"`
}

// ConversationSummary is a history entry without its messages
type ConversationSummary struct {
	ID           string         `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Title        string         `json:"title" example:"Traffic Rules"`
	Topic        string         `json:"topic,omitempty" example:"traffic"`
	Mode         types.Mode     `json:"mode" example:"quick"`
	Language     types.Language `json:"language" example:"en"`
	MessageCount int            `json:"messageCount" example:"6"`
	CreatedAt    string         `json:"createdAt" example:"2025-01-26T09:00:00Z"`
	UpdatedAt    string         `json:"updatedAt" example:"2025-01-26T09:05:00Z"`
}

// ListConversationsResponse represents the conversation history, newest first
type ListConversationsResponse struct {
	Conversations []ConversationSummary `json:"conversations"`
	Total         int                   `json:"total" example:"3"`
}

// VoiceResponse represents the stored voice settings
type VoiceResponse struct {
	Voice types.VoicePreference `json:"voice"`
}

// PinResponse represents a newly pinned message
type PinResponse struct {
	Message string              `json:"message" example:"Message pinned"`
	Pin     types.PinnedMessage `json:"pin"`
}

// ListPinsResponse represents pinned messages, newest pin first
type ListPinsResponse struct {
	Pins []types.PinnedMessage `json:"pins"`
}
