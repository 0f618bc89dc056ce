package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"finreview/pkg/errors"

	"github.com/redis/go-redis/v9"
	"github.com/tidwall/gjson"
)

// RedisStore keeps each record as a JSON string and tracks collection members in a set.
// Writes use WATCH/MULTI so a concurrent writer aborts the transaction.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a RedisStore. prefix namespaces every key.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "finreview"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) recordKey(collection, key string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, collection, key)
}

func (s *RedisStore) indexKey(collection string) string {
	return fmt.Sprintf("%s:%s:_keys", s.prefix, collection)
}

func (s *RedisStore) Get(ctx context.Context, collection, key string) (*Record, error) {
	payload, err := s.client.Get(ctx, s.recordKey(collection, key)).Bytes()
	if err == redis.Nil {
		return nil, notFound(collection, key)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get record")
	}
	return decodeRecord(payload)
}

func (s *RedisStore) Put(ctx context.Context, collection string, rec Record) (int64, error) {
	if err := validate(rec); err != nil {
		return 0, err
	}
	rk := s.recordKey(collection, rec.Key)
	var newVersion int64

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		payload, err := tx.Get(ctx, rk).Bytes()
		exists := err == nil
		if err != nil && err != redis.Nil {
			return errors.Wrap(err, "failed to read record")
		}

		switch {
		case rec.Version == 0 && exists:
			return alreadyExists(collection, rec.Key)
		case rec.Version != 0 && !exists:
			return notFound(collection, rec.Key)
		case rec.Version != 0:
			current, err := decodeRecord(payload)
			if err != nil {
				return err
			}
			if current.Version != rec.Version {
				return stale(collection, rec.Key, rec.Version)
			}
		}

		stored := Record{Key: rec.Key, Data: rec.Data, Version: rec.Version + 1}
		encoded, err := json.Marshal(stored)
		if err != nil {
			return errors.Wrap(err, "failed to encode record")
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, rk, encoded, 0)
			pipe.SAdd(ctx, s.indexKey(collection), rec.Key)
			return nil
		})
		if err != nil {
			return err
		}
		newVersion = stored.Version
		return nil
	}, rk)

	if errors.Is(err, redis.TxFailedErr) {
		return 0, stale(collection, rec.Key, rec.Version)
	}
	if err != nil {
		return 0, err
	}
	return newVersion, nil
}

func (s *RedisStore) Query(ctx context.Context, collection, field, value string) ([]Record, error) {
	keys, err := s.client.SMembers(ctx, s.indexKey(collection)).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list records")
	}
	if len(keys) == 0 {
		return nil, nil
	}
	sort.Strings(keys)

	redisKeys := make([]string, len(keys))
	for i, k := range keys {
		redisKeys[i] = s.recordKey(collection, k)
	}
	values, err := s.client.MGet(ctx, redisKeys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load records")
	}

	var out []Record
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		if gjson.Get(raw, "data."+gjsonEscape(field)).String() != value {
			continue
		}
		rec, err := decodeRecord([]byte(raw))
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, nil
}

func decodeRecord(payload []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, errors.Wrap(err, "failed to decode record")
	}
	return &rec, nil
}

// gjsonEscape escapes path metacharacters so field is matched literally.
func gjsonEscape(field string) string {
	out := make([]byte, 0, len(field))
	for i := 0; i < len(field); i++ {
		switch field[i] {
		case '.', '*', '?', '|', '#', '@', '\\':
			out = append(out, '\\')
		}
		out = append(out, field[i])
	}
	return string(out)
}
