// Package repositories holds the shared-state adapters of the relay.
package repositories

import (
	"context"
	"fmt"
	"log/slog"
	"relay-lab/domain"

	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
)

// presenceKey is the Redis hash mirroring participant -> hosting instance.
const presenceKey = "userSocketMap"

// PresenceRepository mirrors the presence directory into a Redis hash with
// last-write-wins semantics. The hash is never authoritative: entries lost
// on a Redis restart reappear with the participant's next presence event.
type PresenceRepository struct {
	log    *slog.Logger
	client *redis.Client
}

func NewPresenceRepository(log *slog.Logger, client *redis.Client) *PresenceRepository {
	return &PresenceRepository{log: log, client: client}
}

func (r *PresenceRepository) Upsert(ctx context.Context, participantID domain.ParticipantID, instance domain.InstanceID) error {
	if err := r.client.HSet(ctx, presenceKey, string(participantID), string(instance)).Err(); err != nil {
		return fmt.Errorf("presence upsert: %w", err)
	}
	return nil
}

func (r *PresenceRepository) Delete(ctx context.Context, participantID domain.ParticipantID) error {
	if err := r.client.HDel(ctx, presenceKey, string(participantID)).Err(); err != nil {
		return fmt.Errorf("presence delete: %w", err)
	}
	return nil
}

// Participants lists every participant currently present in the shared hash,
// used to seed a freshly started instance's directory.
func (r *PresenceRepository) Participants(ctx context.Context) ([]domain.ParticipantID, error) {
	keys, err := r.client.HKeys(ctx, presenceKey).Result()
	if err != nil {
		return nil, fmt.Errorf("presence keys: %w", err)
	}
	return lo.Map(keys, func(key string, _ int) domain.ParticipantID {
		return domain.ParticipantID(key)
	}), nil
}
