package preferences

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis"
	"github.com/google/uuid"
	"github.com/xpanvictor/civicguru/internal/types"
)

// RedisPreferenceRepo stores each preference as a JSON value under a
// per-owner key. Missing keys read as nil.
type RedisPreferenceRepo struct {
	rc *redis.Client
}

func voiceKey(ownerID uuid.UUID) string {
	return fmt.Sprintf("user:%s:voice", ownerID.String())
}

func pinsKey(ownerID uuid.UUID) string {
	return fmt.Sprintf("user:%s:pins", ownerID.String())
}

func (r *RedisPreferenceRepo) getJSON(key string, v interface{}) (bool, error) {
	raw, err := r.rc.Get(key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decoding %s: %w", key, err)
	}
	return true, nil
}

func (r *RedisPreferenceRepo) setJSON(key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	if err := r.rc.Set(key, data, 0).Err(); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// GetVoice implements types.PreferenceRepository.
func (r *RedisPreferenceRepo) GetVoice(_ context.Context, ownerID uuid.UUID) (*types.VoicePreference, error) {
	var v types.VoicePreference
	ok, err := r.getJSON(voiceKey(ownerID), &v)
	if err != nil || !ok {
		return nil, err
	}
	return &v, nil
}

// SetVoice implements types.PreferenceRepository.
func (r *RedisPreferenceRepo) SetVoice(_ context.Context, ownerID uuid.UUID, v types.VoicePreference) error {
	return r.setJSON(voiceKey(ownerID), v)
}

// GetPins implements types.PreferenceRepository.
func (r *RedisPreferenceRepo) GetPins(_ context.Context, ownerID uuid.UUID) ([]types.PinnedMessage, error) {
	var pins []types.PinnedMessage
	if _, err := r.getJSON(pinsKey(ownerID), &pins); err != nil {
		return nil, err
	}
	return pins, nil
}

// SetPins implements types.PreferenceRepository.
func (r *RedisPreferenceRepo) SetPins(_ context.Context, ownerID uuid.UUID, pins []types.PinnedMessage) error {
	return r.setJSON(pinsKey(ownerID), pins)
}

func NewRedisPreferenceRepo(rc *redis.Client) types.PreferenceRepository {
	return &RedisPreferenceRepo{rc: rc}
}
