package preferences

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/xpanvictor/civicguru/internal/types"
)

type MemoryPreferenceRepo struct {
	mu     sync.RWMutex
	voices map[uuid.UUID]types.VoicePreference
	pins   map[uuid.UUID][]types.PinnedMessage
}

func NewMemoryPreferenceRepo() *MemoryPreferenceRepo {
	return &MemoryPreferenceRepo{
		voices: make(map[uuid.UUID]types.VoicePreference),
		pins:   make(map[uuid.UUID][]types.PinnedMessage),
	}
}

func (m *MemoryPreferenceRepo) GetVoice(_ context.Context, ownerID uuid.UUID) (*types.VoicePreference, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.voices[ownerID]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (m *MemoryPreferenceRepo) SetVoice(_ context.Context, ownerID uuid.UUID, v types.VoicePreference) error {
	m.mu.Lock()
	m.voices[ownerID] = v
	m.mu.Unlock()
	return nil
}

func (m *MemoryPreferenceRepo) GetPins(_ context.Context, ownerID uuid.UUID) ([]types.PinnedMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]types.PinnedMessage(nil), m.pins[ownerID]...), nil
}

func (m *MemoryPreferenceRepo) SetPins(_ context.Context, ownerID uuid.UUID, pins []types.PinnedMessage) error {
	m.mu.Lock()
	m.pins[ownerID] = append([]types.PinnedMessage(nil), pins...)
	m.mu.Unlock()
	return nil
}
