package conversation

import (
	"time"

	"github.com/google/uuid"
	"github.com/xpanvictor/civicguru/internal/types"
)

type ConversationEntity struct {
	ID        uuid.UUID `gorm:"primaryKey;type:char(36);not null"`
	OwnerID   uuid.UUID `gorm:"column:owner_id;type:char(36);not null;index"`
	Title     string    `gorm:"type:varchar(255)"`
	Topic     string    `gorm:"type:varchar(32)"`
	Mode      string    `gorm:"type:varchar(10)"`
	Language  string    `gorm:"type:varchar(5)"`
	CreatedAt time.Time `gorm:"autoCreateTime:false;precision:3"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false;precision:3"`

	Messages []MessageEntity `gorm:"foreignKey:ConversationID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (ConversationEntity) TableName() string { return "conversations" }

// MessageEntity rows are rewritten with their conversation; Position keeps
// transcript order independent of timestamps.
type MessageEntity struct {
	ID             uuid.UUID `gorm:"primaryKey;type:char(36);not null"`
	ConversationID uuid.UUID `gorm:"column:conversation_id;type:char(36);not null;index"`
	Position       int       `gorm:"not null"`
	Speaker        string    `gorm:"type:varchar(10)"`
	Text           string    `gorm:"type:text"`
	Timestamp      time.Time `gorm:"precision:3"`
}

func (MessageEntity) TableName() string { return "conversation_messages" }

func (ce *ConversationEntity) FromDomain(c types.Conversation) {
	ce.ID = c.ID
	ce.OwnerID = c.OwnerID
	ce.Title = c.Title
	ce.Topic = c.Topic
	ce.Mode = string(c.Mode)
	ce.Language = string(c.Language)
	ce.CreatedAt = c.CreatedAt
	ce.UpdatedAt = c.UpdatedAt
	ce.Messages = make([]MessageEntity, len(c.Messages))
	for i, m := range c.Messages {
		ce.Messages[i].FromDomain(c.ID, i, m)
	}
}

func (ce *ConversationEntity) ToDomain() types.Conversation {
	msgs := make([]types.Message, len(ce.Messages))
	for i := range ce.Messages {
		msgs[i] = ce.Messages[i].ToDomain()
	}
	return types.Conversation{
		ID:        ce.ID,
		OwnerID:   ce.OwnerID,
		Title:     ce.Title,
		Topic:     ce.Topic,
		Mode:      types.Mode(ce.Mode),
		Language:  types.Language(ce.Language),
		CreatedAt: ce.CreatedAt,
		UpdatedAt: ce.UpdatedAt,
		Messages:  msgs,
	}
}

func (me *MessageEntity) FromDomain(convID uuid.UUID, pos int, m types.Message) {
	me.ID = m.ID
	if me.ID == uuid.Nil {
		me.ID = uuid.New()
	}
	me.ConversationID = convID
	me.Position = pos
	me.Speaker = string(m.Speaker)
	me.Text = m.Text
	me.Timestamp = m.Timestamp
}

func (me *MessageEntity) ToDomain() types.Message {
	return types.Message{
		ID:        me.ID,
		Speaker:   types.Speaker(me.Speaker),
		Text:      me.Text,
		IsFinal:   true,
		Timestamp: me.Timestamp,
	}
}
