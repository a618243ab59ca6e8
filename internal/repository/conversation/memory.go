package conversation

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/xpanvictor/civicguru/internal/types"
)

// MemoryConversationRepo keeps history in process, for the terminal client
// and servers without a database.
type MemoryConversationRepo struct {
	mu    sync.RWMutex
	convs map[uuid.UUID]map[uuid.UUID]types.Conversation
}

func NewMemoryConvoRepo() *MemoryConversationRepo {
	return &MemoryConversationRepo{convs: make(map[uuid.UUID]map[uuid.UUID]types.Conversation)}
}

func clone(c types.Conversation) types.Conversation {
	c.Messages = append([]types.Message(nil), c.Messages...)
	return c
}

func (m *MemoryConversationRepo) Save(_ context.Context, c types.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	owned, ok := m.convs[c.OwnerID]
	if !ok {
		owned = make(map[uuid.UUID]types.Conversation)
		m.convs[c.OwnerID] = owned
	}
	owned[c.ID] = clone(c)
	return nil
}

func (m *MemoryConversationRepo) Get(_ context.Context, ownerID, id uuid.UUID) (*types.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.convs[ownerID][id]
	if !ok {
		return nil, types.ErrConversationNotFound
	}
	c = clone(c)
	return &c, nil
}

func (m *MemoryConversationRepo) List(_ context.Context, ownerID uuid.UUID) ([]types.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.Conversation, 0, len(m.convs[ownerID]))
	for _, c := range m.convs[ownerID] {
		out = append(out, clone(c))
	}
	return out, nil
}

func (m *MemoryConversationRepo) Delete(_ context.Context, ownerID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.convs[ownerID][id]; !ok {
		return types.ErrConversationNotFound
	}
	delete(m.convs[ownerID], id)
	return nil
}

func (m *MemoryConversationRepo) Clear(_ context.Context, ownerID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.convs, ownerID)
	return nil
}
