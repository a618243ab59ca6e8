package conversation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/xpanvictor/civicguru/internal/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormConversationRepo struct {
	db *gorm.DB
}

func orderedMessages(db *gorm.DB) *gorm.DB { return db.Order("position") }

// Save implements types.ConversationRepository. The conversation row is
// upserted and its messages replaced in one transaction.
func (g *GormConversationRepo) Save(ctx context.Context, c types.Conversation) error {
	var ce ConversationEntity
	ce.FromDomain(c)
	msgs := ce.Messages
	ce.Messages = nil

	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "topic", "mode", "language", "updated_at"}),
		}).Omit(clause.Associations).Create(&ce).Error; err != nil {
			return fmt.Errorf("failed to upsert conversation: %w", err)
		}
		if err := tx.Where("conversation_id = ?", ce.ID).Delete(&MessageEntity{}).Error; err != nil {
			return fmt.Errorf("failed to replace messages: %w", err)
		}
		if len(msgs) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(msgs, 100).Error; err != nil {
			return fmt.Errorf("failed to store messages: %w", err)
		}
		return nil
	})
}

// Get implements types.ConversationRepository.
func (g *GormConversationRepo) Get(ctx context.Context, ownerID, id uuid.UUID) (*types.Conversation, error) {
	var ce ConversationEntity
	err := g.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Preload("Messages", orderedMessages).
		First(&ce).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	c := ce.ToDomain()
	return &c, nil
}

// List implements types.ConversationRepository.
func (g *GormConversationRepo) List(ctx context.Context, ownerID uuid.UUID) ([]types.Conversation, error) {
	var entities []ConversationEntity
	err := g.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Preload("Messages", orderedMessages).
		Order("created_at DESC").
		Find(&entities).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	convs := make([]types.Conversation, len(entities))
	for i := range entities {
		convs[i] = entities[i].ToDomain()
	}
	return convs, nil
}

// Delete implements types.ConversationRepository.
func (g *GormConversationRepo) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND owner_id = ?", id, ownerID).Delete(&ConversationEntity{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete conversation: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return types.ErrConversationNotFound
		}
		return tx.Where("conversation_id = ?", id).Delete(&MessageEntity{}).Error
	})
}

// Clear implements types.ConversationRepository.
func (g *GormConversationRepo) Clear(ctx context.Context, ownerID uuid.UUID) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owned := tx.Model(&ConversationEntity{}).Select("id").Where("owner_id = ?", ownerID)
		if err := tx.Where("conversation_id IN (?)", owned).Delete(&MessageEntity{}).Error; err != nil {
			return fmt.Errorf("failed to clear messages: %w", err)
		}
		if err := tx.Where("owner_id = ?", ownerID).Delete(&ConversationEntity{}).Error; err != nil {
			return fmt.Errorf("failed to clear conversations: %w", err)
		}
		return nil
	})
}

func NewGormConvoRepo(db *gorm.DB) types.ConversationRepository {
	return &GormConversationRepo{db: db}
}
