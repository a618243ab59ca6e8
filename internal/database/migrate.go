package database

import (
	"fmt"

	convoRepo "github.com/xpanvictor/civicguru/internal/repository/conversation"
	"gorm.io/gorm"
)

func MigrateDB(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&convoRepo.ConversationEntity{},
		&convoRepo.MessageEntity{},
	); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}
