package review

import (
	"context"
	"strings"
	"time"

	"finreview/internal/docstatus"
	"finreview/internal/notification"
	"finreview/internal/store"
	"finreview/pkg/domain"
	errs "finreview/pkg/errors"

	"github.com/google/uuid"
)

// DocumentInput is an upload reported by the file-handling collaborator.
type DocumentInput struct {
	Type          domain.DocumentType
	ApplicationID string
	FileRef       string
	ExpiryDate    *time.Time
}

// DocumentOutcome carries a document and the composite statuses recomputed after it changed.
type DocumentOutcome struct {
	Document        *domain.Document       `json:"document"`
	KYCStatus       domain.CompositeStatus `json:"kycStatus"`
	DocumentsStatus domain.CompositeStatus `json:"documentsStatus,omitempty"`
}

// RegisterDocument records a new upload as a pending document. A re-upload of the
// same type is a new record and supersedes the older one in every roll-up.
func (s *Service) RegisterDocument(ctx context.Context, owner domain.Principal, in DocumentInput) (*DocumentOutcome, error) {
	now := s.now().UTC()
	doc := &domain.Document{
		ID:            uuid.New().String(),
		OwnerID:       owner.ID,
		OwnerType:     owner.Type,
		ApplicationID: strings.TrimSpace(in.ApplicationID),
		Type:          in.Type,
		FileRef:       in.FileRef,
		Status:        domain.DocumentStatusPending,
		ExpiryDate:    in.ExpiryDate,
		UploadedAt:    now,
	}
	meta := domain.Metadata{"type": string(in.Type)}
	if doc.ApplicationID != "" {
		meta["application_id"] = doc.ApplicationID
	}

	err := func() error {
		if !owner.Type.IsOwnerType() {
			return errs.Deny(errs.ErrPermissionDenied, errs.ReasonNotOwner, "only a business or investor can upload documents")
		}
		if !in.Type.Valid() {
			return invalid("unknown document type %q", in.Type)
		}
		if doc.ApplicationID != "" {
			app, err := s.apps.Get(ctx, doc.ApplicationID)
			if err != nil {
				return err
			}
			if err := requireOwner(owner, app.OwnerID); err != nil {
				return err
			}
		}
		return s.docs.Save(ctx, doc)
	}()

	s.finish(ctx, owner, domain.ActionRegisterDocument, doc.ID, err, meta)
	if err != nil {
		return nil, err
	}
	return s.rollUp(ctx, doc), nil
}

// VerifyDocument marks a pending document verified. Expired documents cannot be verified.
func (s *Service) VerifyDocument(ctx context.Context, actor domain.Principal, docID string) (*DocumentOutcome, error) {
	out, err := s.reviewDocument(ctx, actor, domain.ActionVerifyDocument, docID, func(doc *domain.Document) error {
		if doc.IsExpired(s.now()) {
			return errs.Deny(errs.ErrDocumentExpired, errs.ReasonDocumentExpired,
				"document %s expired on %s", doc.ID, doc.ExpiryDate.Format("2006-01-02"))
		}
		doc.Status = domain.DocumentStatusVerified
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, s.documentEvent(ctx, notification.EventDocumentVerified, out.Document, string(out.Document.Type)))
	return out, nil
}

// RejectDocument marks a pending document rejected. Only a fresh upload clears it.
func (s *Service) RejectDocument(ctx context.Context, actor domain.Principal, docID, reason string) (*DocumentOutcome, error) {
	reason = strings.TrimSpace(reason)
	out, err := s.reviewDocument(ctx, actor, domain.ActionRejectDocument, docID, func(doc *domain.Document) error {
		if reason == "" {
			return invalid("a rejection reason is required")
		}
		doc.Status = domain.DocumentStatusRejected
		doc.RejectionReason = reason
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, s.documentEvent(ctx, notification.EventDocumentRejected, out.Document, reason))
	return out, nil
}

// reviewDocument runs the gated cycle for a verify or reject decision.
func (s *Service) reviewDocument(ctx context.Context, actor domain.Principal, action, docID string, decide func(doc *domain.Document) error) (*DocumentOutcome, error) {
	meta := domain.Metadata{}
	var doc *domain.Document

	err := s.withRetry(ctx, store.CollectionDocuments, docID, func() error {
		admin, err := s.loadAdmin(ctx, actor)
		if err != nil {
			return err
		}
		if err := requireCapability(admin, domain.CapReview); err != nil {
			return err
		}

		loaded, err := s.docs.Get(ctx, docID)
		if err != nil {
			return err
		}
		meta["type"] = string(loaded.Type)
		meta["owner_id"] = loaded.OwnerID

		// document status is monotone: only pending documents move
		if loaded.Status != domain.DocumentStatusPending {
			return errs.Deny(errs.ErrIllegalTransition, errs.ReasonIllegalTransition,
				"document %s is already %s", loaded.ID, loaded.Status)
		}
		if err := decide(loaded); err != nil {
			return err
		}

		now := s.now().UTC()
		loaded.ReviewedBy = admin.ID
		loaded.ReviewedAt = &now
		if err := s.docs.Save(ctx, loaded); err != nil {
			return err
		}
		doc = loaded
		return nil
	})

	s.finish(ctx, actor, action, docID, err, meta)
	if err != nil {
		return nil, err
	}
	return s.rollUp(ctx, doc), nil
}

// ==============================================================================
// COMPOSITE STATUS
// ==============================================================================

// rollUp recomputes the owner's KYC case and the linked application after a document
// changed. The document change already stands, so failures are logged, not returned.
func (s *Service) rollUp(ctx context.Context, doc *domain.Document) *DocumentOutcome {
	out := &DocumentOutcome{Document: doc}

	status, err := s.refreshKYCCase(ctx, doc.OwnerID, doc.OwnerType)
	if err != nil {
		s.logger.Error("Failed to refresh KYC case status", map[string]interface{}{
			"owner_id": doc.OwnerID,
			"error":    err.Error(),
		})
	}
	out.KYCStatus = status

	if doc.ApplicationID != "" {
		status, err := s.refreshApplicationDocuments(ctx, doc.ApplicationID)
		if err != nil {
			s.logger.Error("Failed to refresh application documents status", map[string]interface{}{
				"application_id": doc.ApplicationID,
				"error":          err.Error(),
			})
		}
		out.DocumentsStatus = status
	}
	return out
}

// retryableCreate turns a lost create race into a stale version so the cycle reloads.
func retryableCreate(err error, collection, key string) error {
	if errs.Is(err, errs.ErrAlreadyExists) {
		return errs.Deny(errs.ErrStaleVersion, errs.ReasonVersionOutdated, "%s/%s was created concurrently", collection, key)
	}
	return err
}

func (s *Service) refreshKYCCase(ctx context.Context, ownerID string, ownerType domain.PrincipalType) (domain.CompositeStatus, error) {
	var status domain.CompositeStatus
	err := s.withRetry(ctx, store.CollectionKYCCases, ownerID, func() error {
		docs, err := s.docs.ListByOwner(ctx, ownerID)
		if err != nil {
			return err
		}
		kc, err := s.kyc.Get(ctx, ownerID)
		if errs.Is(err, errs.ErrNotFound) {
			kc, err = &domain.KYCCase{OwnerID: ownerID, SubjectType: ownerType}, nil
		}
		if err != nil {
			return err
		}

		kc.DocumentsUploaded = kc.DocumentsUploaded || len(docs) > 0
		kc.Status = docstatus.DeriveStatus(docstatus.Latest(docs), kc.DocumentsUploaded)
		kc.UpdatedAt = s.now().UTC()
		if err := s.kyc.Save(ctx, kc); err != nil {
			return retryableCreate(err, store.CollectionKYCCases, ownerID)
		}
		status = kc.Status
		return nil
	})
	return status, err
}

func (s *Service) refreshApplicationDocuments(ctx context.Context, appID string) (domain.CompositeStatus, error) {
	var status domain.CompositeStatus
	err := s.withRetry(ctx, store.CollectionApplications, appID, func() error {
		app, err := s.apps.Get(ctx, appID)
		if err != nil {
			return err
		}
		docs, err := s.docs.ListByApplication(ctx, appID)
		if err != nil {
			return err
		}
		uploaded := app.DocumentsUploaded || len(docs) > 0
		derived := docstatus.DeriveStatus(docstatus.Latest(docs), uploaded)
		status = derived
		if derived == app.DocumentsStatus && uploaded == app.DocumentsUploaded {
			return nil
		}
		app.DocumentsUploaded = uploaded
		app.DocumentsStatus = derived
		app.UpdatedAt = s.now().UTC()
		return s.apps.Save(ctx, app)
	})
	return status, err
}

// derivedDocumentsStatus computes the documents status of an application not yet saved.
func (s *Service) derivedDocumentsStatus(ctx context.Context, app *domain.Application) domain.CompositeStatus {
	docs, err := s.docs.ListByApplication(ctx, app.ID)
	if err != nil {
		docs = nil
	}
	return docstatus.DeriveStatus(docstatus.Latest(docs), app.DocumentsUploaded || len(docs) > 0)
}

func (s *Service) documentEvent(ctx context.Context, t notification.EventType, doc *domain.Document, message string) notification.Event {
	e := notification.Event{Type: t, RecipientID: doc.OwnerID, Message: message}
	if doc.ApplicationID != "" {
		e.ApplicationID = doc.ApplicationID
		if app, err := s.apps.Get(ctx, doc.ApplicationID); err == nil {
			e.RecipientEmail = app.ContactEmail
		}
	}
	return e
}
