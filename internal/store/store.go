// Package store is the versioned document store behind every repository.
//
// A record carries a monotonically increasing version. Writing with Version 0
// creates the record; any other version must match the stored one or the write
// is refused with a stale-version denial and nothing changes.
package store

import (
	"context"
	"encoding/json"

	errs "finreview/pkg/errors"
)

// Collections.
const (
	CollectionApplications = "applications"
	CollectionDocuments    = "documents"
	CollectionAdmins       = "admins"
	CollectionKYCCases     = "kyc_cases"
)

// Record is one stored document.
type Record struct {
	Key     string          `json:"key" db:"key"`
	Data    json.RawMessage `json:"data" db:"data"`
	Version int64           `json:"version" db:"version"`
}

// Store is the persistence collaborator.
type Store interface {
	Get(ctx context.Context, collection, key string) (*Record, error)
	// Put writes rec and returns the new stored version.
	Put(ctx context.Context, collection string, rec Record) (int64, error)
	// Query returns the records whose top-level JSON field equals value.
	Query(ctx context.Context, collection, field, value string) ([]Record, error)
}

func notFound(collection, key string) error {
	return errs.Deny(errs.ErrNotFound, errs.ReasonNotFound, "%s/%s does not exist", collection, key)
}

func alreadyExists(collection, key string) error {
	return errs.Wrap(errs.ErrAlreadyExists, collection+"/"+key)
}

func stale(collection, key string, supplied int64) error {
	return errs.Deny(errs.ErrStaleVersion, errs.ReasonVersionOutdated,
		"%s/%s was modified since version %d", collection, key, supplied)
}

func validate(rec Record) error {
	if rec.Key == "" {
		return errs.Deny(errs.ErrInvalidInput, errs.ReasonInvalidInput, "record key is required")
	}
	if rec.Version < 0 {
		return errs.Deny(errs.ErrInvalidInput, errs.ReasonInvalidInput, "negative version %d", rec.Version)
	}
	if !json.Valid(rec.Data) {
		return errs.Deny(errs.ErrInvalidInput, errs.ReasonInvalidInput, "record %s is not valid JSON", rec.Key)
	}
	return nil
}
