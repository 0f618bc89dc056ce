// Package docstatus derives the composite status of a KYC case or application
// from the statuses of its documents.
package docstatus

import "finreview/pkg/domain"

// DeriveStatus rolls child document statuses into one composite status.
// Precedence, first match wins:
//  1. any rejected document      -> rejected
//  2. non-empty and all verified -> verified
//  3. no documents               -> in-review if the owner reports uploads, else pending
//  4. otherwise                  -> in-review
//
// A single rejection always dominates; only an explicit re-upload by the owner clears it.
// Documents with an unrecognised status never count as verified, and a set made only of
// them is treated like an empty one.
func DeriveStatus(docs []domain.Document, uploaded bool) domain.CompositeStatus {
	verified, known := 0, 0
	for i := range docs {
		switch docs[i].Status {
		case domain.DocumentStatusRejected:
			return domain.CompositeRejected
		case domain.DocumentStatusVerified:
			verified++
			known++
		case domain.DocumentStatusPending:
			known++
		}
	}

	if known == 0 {
		if uploaded {
			return domain.CompositeInReview
		}
		return domain.CompositePending
	}
	if verified == len(docs) {
		return domain.CompositeVerified
	}
	return domain.CompositeInReview
}

// Latest keeps, per document type, only the most recently uploaded instance, so a
// re-upload supersedes the record it replaces. Documents without a type are kept as is.
func Latest(docs []domain.Document) []domain.Document {
	newest := make(map[domain.DocumentType]int, len(docs))
	out := make([]domain.Document, 0, len(docs))
	for _, d := range docs {
		if d.Type == "" {
			out = append(out, d)
			continue
		}
		if i, ok := newest[d.Type]; ok {
			if d.UploadedAt.After(out[i].UploadedAt) {
				out[i] = d
			}
			continue
		}
		newest[d.Type] = len(out)
		out = append(out, d)
	}
	return out
}
