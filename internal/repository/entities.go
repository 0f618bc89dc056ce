package repository

import (
	"context"
	"strconv"

	"finreview/internal/store"
	"finreview/pkg/domain"
)

type application struct{ domain.Application }

func (a *application) storeKey() string { return a.ID }
func (a *application) version() *int64  { return &a.Version }

type document struct{ domain.Document }

func (d *document) storeKey() string { return d.ID }
func (d *document) version() *int64  { return &d.Version }

type admin struct{ domain.AdminProfile }

func (a *admin) storeKey() string { return a.ID }
func (a *admin) version() *int64  { return &a.Version }

type kycCase struct{ domain.KYCCase }

func (k *kycCase) storeKey() string { return k.OwnerID }
func (k *kycCase) version() *int64  { return &k.Version }

// ==============================================================================
// APPLICATIONS
// ==============================================================================

// Applications persists financing applications.
type Applications struct {
	c collection[application, *application]
}

// NewApplications creates an Applications repository.
func NewApplications(s store.Store) *Applications {
	return &Applications{c: collection[application, *application]{store: s, name: store.CollectionApplications}}
}

func (r *Applications) Get(ctx context.Context, id string) (*domain.Application, error) {
	a, err := r.c.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &a.Application, nil
}

// Save creates the application at version 0 or updates it at its loaded version.
func (r *Applications) Save(ctx context.Context, app *domain.Application) error {
	w := &application{*app}
	if err := r.c.put(ctx, w); err != nil {
		return err
	}
	app.Version = w.Version
	return nil
}

func (r *Applications) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Application, error) {
	return unwrapApplications(r.c.query(ctx, "ownerId", ownerID))
}

func (r *Applications) ListByStatus(ctx context.Context, status domain.ApplicationStatus) ([]*domain.Application, error) {
	return unwrapApplications(r.c.query(ctx, "status", string(status.Canonical())))
}

func unwrapApplications(in []*application, err error) ([]*domain.Application, error) {
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Application, len(in))
	for i, a := range in {
		out[i] = &a.Application
	}
	return out, nil
}

// ==============================================================================
// DOCUMENTS
// ==============================================================================

// Documents persists uploaded documents.
type Documents struct {
	c collection[document, *document]
}

// NewDocuments creates a Documents repository.
func NewDocuments(s store.Store) *Documents {
	return &Documents{c: collection[document, *document]{store: s, name: store.CollectionDocuments}}
}

func (r *Documents) Get(ctx context.Context, id string) (*domain.Document, error) {
	d, err := r.c.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &d.Document, nil
}

func (r *Documents) Save(ctx context.Context, doc *domain.Document) error {
	w := &document{*doc}
	if err := r.c.put(ctx, w); err != nil {
		return err
	}
	doc.Version = w.Version
	return nil
}

func (r *Documents) ListByOwner(ctx context.Context, ownerID string) ([]domain.Document, error) {
	return unwrapDocuments(r.c.query(ctx, "ownerId", ownerID))
}

func (r *Documents) ListByApplication(ctx context.Context, applicationID string) ([]domain.Document, error) {
	return unwrapDocuments(r.c.query(ctx, "applicationId", applicationID))
}

func unwrapDocuments(in []*document, err error) ([]domain.Document, error) {
	if err != nil {
		return nil, err
	}
	out := make([]domain.Document, len(in))
	for i, d := range in {
		out[i] = d.Document
	}
	return out, nil
}

// ==============================================================================
// ADMINS
// ==============================================================================

// Admins persists admin team profiles. Profiles are never deleted.
type Admins struct {
	c collection[admin, *admin]
}

// NewAdmins creates an Admins repository.
func NewAdmins(s store.Store) *Admins {
	return &Admins{c: collection[admin, *admin]{store: s, name: store.CollectionAdmins}}
}

func (r *Admins) Get(ctx context.Context, id string) (*domain.AdminProfile, error) {
	a, err := r.c.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &a.AdminProfile, nil
}

func (r *Admins) Save(ctx context.Context, profile *domain.AdminProfile) error {
	w := &admin{*profile}
	if err := r.c.put(ctx, w); err != nil {
		return err
	}
	profile.Version = w.Version
	return nil
}

func (r *Admins) ListActive(ctx context.Context) ([]*domain.AdminProfile, error) {
	in, err := r.c.query(ctx, "isActive", strconv.FormatBool(true))
	if err != nil {
		return nil, err
	}
	out := make([]*domain.AdminProfile, len(in))
	for i, a := range in {
		out[i] = &a.AdminProfile
	}
	return out, nil
}

// ==============================================================================
// KYC CASES
// ==============================================================================

// KYCCases persists the per-owner KYC case.
type KYCCases struct {
	c collection[kycCase, *kycCase]
}

// NewKYCCases creates a KYCCases repository.
func NewKYCCases(s store.Store) *KYCCases {
	return &KYCCases{c: collection[kycCase, *kycCase]{store: s, name: store.CollectionKYCCases}}
}

func (r *KYCCases) Get(ctx context.Context, ownerID string) (*domain.KYCCase, error) {
	k, err := r.c.get(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return &k.KYCCase, nil
}

func (r *KYCCases) Save(ctx context.Context, kc *domain.KYCCase) error {
	w := &kycCase{*kc}
	if err := r.c.put(ctx, w); err != nil {
		return err
	}
	kc.Version = w.Version
	return nil
}
