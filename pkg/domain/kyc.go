package domain

import (
	"time"
)

// DocumentStatus is the verification status of a single document instance.
// It only moves forward: pending -> verified or pending -> rejected.
type DocumentStatus string

const (
	DocumentStatusPending  DocumentStatus = "pending"
	DocumentStatusVerified DocumentStatus = "verified"
	DocumentStatusRejected DocumentStatus = "rejected"
)

// CompositeStatus is a status derived from child documents.
type CompositeStatus string

const (
	CompositePending  CompositeStatus = "pending"
	CompositeInReview CompositeStatus = "in-review"
	CompositeVerified CompositeStatus = "verified"
	CompositeRejected CompositeStatus = "rejected"
)

// DocumentType represents types of KYC documents.
type DocumentType string

const (
	DocumentTypeGovernmentID         DocumentType = "government_id"
	DocumentTypeProofOfAddress       DocumentType = "proof_of_address"
	DocumentTypeBusinessRegistration DocumentType = "business_registration"
	DocumentTypeTaxCertificate       DocumentType = "tax_certificate"
	DocumentTypeBankStatement        DocumentType = "bank_statement"
	DocumentTypeFinancialStatement   DocumentType = "financial_statement"
	DocumentTypeBVNSlip              DocumentType = "bvn_slip"
	DocumentTypeSelfie               DocumentType = "selfie"
)

// Valid reports whether t is a known document type.
func (t DocumentType) Valid() bool {
	switch t {
	case DocumentTypeGovernmentID, DocumentTypeProofOfAddress, DocumentTypeBusinessRegistration,
		DocumentTypeTaxCertificate, DocumentTypeBankStatement, DocumentTypeFinancialStatement,
		DocumentTypeBVNSlip, DocumentTypeSelfie:
		return true
	}
	return false
}

// Document is one uploaded supporting document. A re-upload is a new Document.
type Document struct {
	ID              string         `json:"id"`
	OwnerID         string         `json:"ownerId"`
	OwnerType       PrincipalType  `json:"ownerType"`
	ApplicationID   string         `json:"applicationId,omitempty"`
	Type            DocumentType   `json:"type"`
	FileRef         string         `json:"fileRef,omitempty"`
	Status          DocumentStatus `json:"status"`
	ExpiryDate      *time.Time     `json:"expiryDate,omitempty"`
	RejectionReason string         `json:"rejectionReason,omitempty"`
	ReviewedBy      string         `json:"reviewedBy,omitempty"`
	ReviewedAt      *time.Time     `json:"reviewedAt,omitempty"`
	UploadedAt      time.Time      `json:"uploadedAt"`
	Version         int64          `json:"version"`
}

// IsExpired reports whether the document carries an expiry date before now.
func (d *Document) IsExpired(now time.Time) bool {
	return d.ExpiryDate != nil && d.ExpiryDate.Before(now)
}

// KYCCase is the KYC onboarding case of a business or investor, keyed by owner id.
type KYCCase struct {
	OwnerID           string          `json:"ownerId"`
	SubjectType       PrincipalType   `json:"subjectType"`
	Status            CompositeStatus `json:"status"`
	DocumentsUploaded bool            `json:"documentsUploaded"`
	UpdatedAt         time.Time       `json:"updatedAt"`
	Version           int64           `json:"version"`
}
