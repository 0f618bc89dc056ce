package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"finreview/pkg/domain"
	"finreview/pkg/errors"

	"github.com/redis/go-redis/v9"
)

// RedisTrail keeps one list per target, newest entry at the head.
type RedisTrail struct {
	client *redis.Client
	prefix string
}

func NewRedisTrail(client *redis.Client, prefix string) *RedisTrail {
	return &RedisTrail{client: client, prefix: prefix}
}

func (t *RedisTrail) key(targetID string) string {
	return fmt.Sprintf("%s:audit:%s", t.prefix, targetID)
}

func (t *RedisTrail) Append(ctx context.Context, entry *domain.AuditEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(err, "failed to encode audit entry")
	}
	if err := t.client.LPush(ctx, t.key(entry.TargetID), payload).Err(); err != nil {
		return errors.Wrap(err, "failed to create audit entry")
	}
	return nil
}

func (t *RedisTrail) ForTarget(ctx context.Context, targetID string, limit int) ([]*domain.AuditEntry, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	raw, err := t.client.LRange(ctx, t.key(targetID), 0, stop).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read audit entries")
	}

	entries := make([]*domain.AuditEntry, 0, len(raw))
	for _, item := range raw {
		var e domain.AuditEntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, errors.Wrap(err, "failed to decode audit entry")
		}
		entries = append(entries, &e)
	}
	return entries, nil
}

func (t *RedisTrail) LastActor(ctx context.Context, targetID string, actions []string) (string, error) {
	entries, err := t.ForTarget(ctx, targetID, 0)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.Success && contains(actions, e.Action) {
			return e.ActorID, nil
		}
	}
	return "", nil
}
