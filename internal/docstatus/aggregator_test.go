package docstatus

import (
	"testing"
	"time"

	"finreview/pkg/domain"

	"github.com/stretchr/testify/assert"
)

func docs(statuses ...domain.DocumentStatus) []domain.Document {
	out := make([]domain.Document, len(statuses))
	for i, s := range statuses {
		out[i] = domain.Document{Status: s}
	}
	return out
}

const (
	pending  = domain.DocumentStatusPending
	verified = domain.DocumentStatusVerified
	rejected = domain.DocumentStatusRejected
)

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name     string
		docs     []domain.Document
		uploaded bool
		want     domain.CompositeStatus
	}{
		{"empty not uploaded", nil, false, domain.CompositePending},
		{"empty uploaded", nil, true, domain.CompositeInReview},
		{"all verified", docs(verified, verified), false, domain.CompositeVerified},
		{"mixed", docs(verified, pending), true, domain.CompositeInReview},
		{"all pending", docs(pending, pending), false, domain.CompositeInReview},
		{"one rejected", docs(rejected), false, domain.CompositeRejected},
		{"malformed only", []domain.Document{{Status: "blurry"}}, false, domain.CompositePending},
		{"malformed only uploaded", []domain.Document{{Status: ""}}, true, domain.CompositeInReview},
		{"verified plus malformed", []domain.Document{{Status: verified}, {Status: "blurry"}}, false, domain.CompositeInReview},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(tt.docs, tt.uploaded))
		})
	}
}

func TestDeriveStatus_RejectionDominates(t *testing.T) {
	for verifiedCount := 0; verifiedCount < 20; verifiedCount++ {
		set := docs(rejected)
		for i := 0; i < verifiedCount; i++ {
			set = append(set, domain.Document{Status: verified})
		}
		set = append(set, domain.Document{Status: pending})
		assert.Equal(t, domain.CompositeRejected, DeriveStatus(set, true))
	}
}

func TestDeriveStatus_AddingPendingToVerifiedSet(t *testing.T) {
	set := docs(verified, verified, verified)
	assert.Equal(t, domain.CompositeVerified, DeriveStatus(set, false))

	set = append(set, domain.Document{Status: pending})
	assert.Equal(t, domain.CompositeInReview, DeriveStatus(set, false))
}

func TestDeriveStatus_BusinessScenario(t *testing.T) {
	b1 := []domain.Document{
		{OwnerID: "B1", Type: domain.DocumentTypeGovernmentID, Status: rejected, RejectionReason: "expired ID"},
		{OwnerID: "B1", Type: domain.DocumentTypeProofOfAddress, Status: verified},
	}
	assert.Equal(t, domain.CompositeRejected, DeriveStatus(b1, true))
}

func TestLatest_ReuploadSupersedes(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	set := []domain.Document{
		{ID: "old-id", Type: domain.DocumentTypeGovernmentID, Status: rejected, UploadedAt: t0},
		{ID: "poa", Type: domain.DocumentTypeProofOfAddress, Status: verified, UploadedAt: t0},
		{ID: "new-id", Type: domain.DocumentTypeGovernmentID, Status: pending, UploadedAt: t0.Add(time.Hour)},
		{ID: "untyped", Status: verified},
	}

	latest := Latest(set)
	assert.Len(t, latest, 3)
	assert.Equal(t, "new-id", latest[0].ID)
	assert.Equal(t, domain.CompositeInReview, DeriveStatus(latest, true))
	assert.Equal(t, domain.CompositeRejected, DeriveStatus(set, true))
}
