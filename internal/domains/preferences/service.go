// Package preferences keeps per-owner voice settings and pinned messages.
package preferences

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xpanvictor/civicguru/internal/types"
	"github.com/xpanvictor/civicguru/pkg/Logger"
	"github.com/xpanvictor/civicguru/pkg/audio/playback"
)

const MaxPins = 10

var (
	ErrPinLimit      = errors.New("you can only pin up to 10 messages")
	ErrAlreadyPinned = errors.New("message already pinned")
	ErrPinNotFound   = errors.New("pin not found")
)

type PreferenceService interface {
	Voice(ctx context.Context, ownerID uuid.UUID) (playback.VoiceSettings, error)
	// SetVoice normalizes v before storing it and returns what was stored.
	SetVoice(ctx context.Context, ownerID uuid.UUID, v types.VoicePreference) (playback.VoiceSettings, error)
	// VoiceSource returns a non-blocking reader of the owner's current
	// settings, kept fresh by SetVoice.
	VoiceSource(ctx context.Context, ownerID uuid.UUID) func() playback.VoiceSettings

	// Pins are ordered newest pin first.
	Pins(ctx context.Context, ownerID uuid.UUID) ([]types.PinnedMessage, error)
	Pin(ctx context.Context, ownerID uuid.UUID, req types.CreatePin) (*types.PinnedMessage, error)
	// Unpin removes the pin whose message has timestamp ts.
	Unpin(ctx context.Context, ownerID uuid.UUID, ts time.Time) error
}

type preferenceService struct {
	repository types.PreferenceRepository
	logger     *Logger.Logger
	now        func() time.Time

	mu     sync.RWMutex
	voices map[uuid.UUID]playback.VoiceSettings
	// pinMu serializes read-modify-write of pin lists.
	pinMu sync.Mutex
}

func toSettings(p types.VoicePreference) playback.VoiceSettings {
	return playback.VoiceSettings{Rate: p.Rate, Pitch: p.Pitch, Volume: p.Volume}.Normalize()
}

// Voice implements PreferenceService.
func (s *preferenceService) Voice(ctx context.Context, ownerID uuid.UUID) (playback.VoiceSettings, error) {
	s.mu.RLock()
	v, ok := s.voices[ownerID]
	s.mu.RUnlock()
	if ok {
		return v, nil
	}

	stored, err := s.repository.GetVoice(ctx, ownerID)
	if err != nil {
		return playback.DefaultVoiceSettings(), fmt.Errorf("failed to load voice settings: %w", err)
	}
	v = playback.DefaultVoiceSettings()
	if stored != nil {
		v = toSettings(*stored)
	}
	s.mu.Lock()
	s.voices[ownerID] = v
	s.mu.Unlock()
	return v, nil
}

// SetVoice implements PreferenceService.
func (s *preferenceService) SetVoice(ctx context.Context, ownerID uuid.UUID, p types.VoicePreference) (playback.VoiceSettings, error) {
	v := toSettings(p)
	err := s.repository.SetVoice(ctx, ownerID, types.VoicePreference{Rate: v.Rate, Pitch: v.Pitch, Volume: v.Volume})
	if err != nil {
		s.logger.Errorf("storing voice settings for %s: %v", ownerID, err)
		return v, fmt.Errorf("failed to store voice settings: %w", err)
	}
	s.mu.Lock()
	s.voices[ownerID] = v
	s.mu.Unlock()
	return v, nil
}

// VoiceSource implements PreferenceService.
func (s *preferenceService) VoiceSource(ctx context.Context, ownerID uuid.UUID) func() playback.VoiceSettings {
	if _, err := s.Voice(ctx, ownerID); err != nil {
		s.logger.Warnf("using default voice for %s: %v", ownerID, err)
	}
	return func() playback.VoiceSettings {
		s.mu.RLock()
		defer s.mu.RUnlock()
		if v, ok := s.voices[ownerID]; ok {
			return v
		}
		return playback.DefaultVoiceSettings()
	}
}

// Pins implements PreferenceService.
func (s *preferenceService) Pins(ctx context.Context, ownerID uuid.UUID) ([]types.PinnedMessage, error) {
	pins, err := s.repository.GetPins(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pins: %w", err)
	}
	sortPins(pins)
	return pins, nil
}

// Pin implements PreferenceService.
func (s *preferenceService) Pin(ctx context.Context, ownerID uuid.UUID, req types.CreatePin) (*types.PinnedMessage, error) {
	s.pinMu.Lock()
	defer s.pinMu.Unlock()

	pins, err := s.repository.GetPins(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pins: %w", err)
	}
	if len(pins) >= MaxPins {
		return nil, ErrPinLimit
	}
	for _, p := range pins {
		if p.Timestamp.Equal(req.Timestamp) {
			return nil, ErrAlreadyPinned
		}
	}

	pin := req.ToPinned(s.now())
	pins = append(pins, pin)
	sortPins(pins)
	if err := s.repository.SetPins(ctx, ownerID, pins); err != nil {
		return nil, fmt.Errorf("failed to store pins: %w", err)
	}
	return &pin, nil
}

// Unpin implements PreferenceService.
func (s *preferenceService) Unpin(ctx context.Context, ownerID uuid.UUID, ts time.Time) error {
	s.pinMu.Lock()
	defer s.pinMu.Unlock()

	pins, err := s.repository.GetPins(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("failed to load pins: %w", err)
	}
	kept := pins[:0]
	for _, p := range pins {
		if !p.Timestamp.Equal(ts) {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(pins) {
		return ErrPinNotFound
	}
	return s.repository.SetPins(ctx, ownerID, kept)
}

func sortPins(pins []types.PinnedMessage) {
	sort.SliceStable(pins, func(i, j int) bool {
		return pins[i].PinnedAt.After(pins[j].PinnedAt)
	})
}

func New(repository types.PreferenceRepository, logger *Logger.Logger) PreferenceService {
	return &preferenceService{
		repository: repository,
		logger:     logger.Named("preferences"),
		now:        time.Now,
		voices:     make(map[uuid.UUID]playback.VoiceSettings),
	}
}
