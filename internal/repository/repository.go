// Package repository maps domain entities onto versioned store records.
// Every loaded entity carries the stored version; Update writes with it and
// copies the new version back on success.
package repository

import (
	"context"
	"encoding/json"

	"finreview/internal/store"
	"finreview/pkg/errors"
)

// versioned is a domain entity persisted under one key.
type versioned interface {
	storeKey() string
	version() *int64
}

type collection[T any, P interface {
	*T
	versioned
}] struct {
	store store.Store
	name  string
}

func (c collection[T, P]) get(ctx context.Context, key string) (P, error) {
	rec, err := c.store.Get(ctx, c.name, key)
	if err != nil {
		return nil, err
	}
	return c.decode(*rec)
}

func (c collection[T, P]) decode(rec store.Record) (P, error) {
	entity := P(new(T))
	if err := json.Unmarshal(rec.Data, entity); err != nil {
		return nil, errors.Wrap(err, "failed to decode "+c.name+" record")
	}
	*entity.version() = rec.Version
	return entity, nil
}

// put creates the entity when its version is 0, otherwise updates at that version.
func (c collection[T, P]) put(ctx context.Context, entity P) error {
	data, err := json.Marshal(entity)
	if err != nil {
		return errors.Wrap(err, "failed to encode "+c.name+" record")
	}
	v, err := c.store.Put(ctx, c.name, store.Record{
		Key:     entity.storeKey(),
		Data:    data,
		Version: *entity.version(),
	})
	if err != nil {
		return err
	}
	*entity.version() = v
	return nil
}

func (c collection[T, P]) query(ctx context.Context, field, value string) ([]P, error) {
	recs, err := c.store.Query(ctx, c.name, field, value)
	if err != nil {
		return nil, err
	}
	out := make([]P, 0, len(recs))
	for _, rec := range recs {
		entity, err := c.decode(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, entity)
	}
	return out, nil
}
