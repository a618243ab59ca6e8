package conversation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/xpanvictor/civicguru/internal/types"
	"github.com/xpanvictor/civicguru/pkg/Logger"
)

var (
	ErrEmptyConversation = errors.New("conversation has no messages")
	ErrMissingID         = errors.New("conversation id required")
)

type ConversationService interface {
	// List returns the owner's history, most recently created first.
	List(ctx context.Context, ownerID uuid.UUID) ([]types.Conversation, error)
	Get(ctx context.Context, ownerID, id uuid.UUID) (*types.Conversation, error)
	// Save inserts or updates a conversation. Only final messages are kept.
	Save(ctx context.Context, conv types.Conversation) (*types.Conversation, error)
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
	Clear(ctx context.Context, ownerID uuid.UUID) error
	Export(ctx context.Context, ownerID, id uuid.UUID) (*ExportFile, error)
}

type conversationService struct {
	repository types.ConversationRepository
	logger     *Logger.Logger
	location   *time.Location
	now        func() time.Time
}

// List implements ConversationService.
func (s *conversationService) List(ctx context.Context, ownerID uuid.UUID) ([]types.Conversation, error) {
	convs, err := s.repository.List(ctx, ownerID)
	if err != nil {
		s.logger.Errorf("listing conversations for %s: %v", ownerID, err)
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	sort.SliceStable(convs, func(i, j int) bool {
		return convs[i].CreatedAt.After(convs[j].CreatedAt)
	})
	return convs, nil
}

// Get implements ConversationService.
func (s *conversationService) Get(ctx context.Context, ownerID, id uuid.UUID) (*types.Conversation, error) {
	return s.repository.Get(ctx, ownerID, id)
}

// Save implements ConversationService.
func (s *conversationService) Save(ctx context.Context, conv types.Conversation) (*types.Conversation, error) {
	if conv.ID == uuid.Nil {
		return nil, ErrMissingID
	}
	conv.Messages = finalOnly(conv.Messages)
	if len(conv.Messages) == 0 {
		return nil, ErrEmptyConversation
	}
	if conv.Title == "" {
		conv.Title = types.DeriveTitle(conv.Messages)
	}

	now := s.now()
	conv.UpdatedAt = now
	existing, err := s.repository.Get(ctx, conv.OwnerID, conv.ID)
	switch {
	case err == nil:
		conv.CreatedAt = existing.CreatedAt
		if conv.Topic == "" {
			conv.Topic = existing.Topic
		}
	case errors.Is(err, types.ErrConversationNotFound):
		conv.CreatedAt = now
	default:
		return nil, fmt.Errorf("failed to look up conversation: %w", err)
	}

	if err := s.repository.Save(ctx, conv); err != nil {
		s.logger.Errorf("saving conversation %s: %v", conv.ID, err)
		return nil, fmt.Errorf("failed to save conversation: %w", err)
	}
	return &conv, nil
}

// Delete implements ConversationService.
func (s *conversationService) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	if err := s.repository.Delete(ctx, ownerID, id); err != nil {
		return err
	}
	s.logger.Infof("conversation %s deleted", id)
	return nil
}

// Clear implements ConversationService.
func (s *conversationService) Clear(ctx context.Context, ownerID uuid.UUID) error {
	if err := s.repository.Clear(ctx, ownerID); err != nil {
		s.logger.Errorf("clearing history for %s: %v", ownerID, err)
		return fmt.Errorf("failed to clear history: %w", err)
	}
	s.logger.Infof("history cleared for %s", ownerID)
	return nil
}

// Export implements ConversationService.
func (s *conversationService) Export(ctx context.Context, ownerID, id uuid.UUID) (*ExportFile, error) {
	conv, err := s.repository.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if len(conv.Messages) == 0 {
		return nil, ErrEmptyConversation
	}
	f := ExportTranscript(conv.Messages, s.now(), s.location)
	return &f, nil
}

func finalOnly(msgs []types.Message) []types.Message {
	out := make([]types.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.IsFinal {
			out = append(out, m)
		}
	}
	return out
}

// New builds the service. A nil location means time.Local.
func New(repository types.ConversationRepository, logger *Logger.Logger, location *time.Location) ConversationService {
	if location == nil {
		location = time.Local
	}
	return &conversationService{
		repository: repository,
		logger:     logger.Named("conversation"),
		location:   location,
		now:        time.Now,
	}
}
