package audit

import (
	"context"
	"sync"

	"finreview/pkg/domain"
)

// MemoryTrail keeps entries in process memory, in append order.
type MemoryTrail struct {
	mu      sync.RWMutex
	entries []*domain.AuditEntry
}

// NewMemoryTrail creates an empty MemoryTrail.
func NewMemoryTrail() *MemoryTrail {
	return &MemoryTrail{}
}

func (t *MemoryTrail) Append(ctx context.Context, entry *domain.AuditEntry) error {
	cp := *entry
	t.mu.Lock()
	t.entries = append(t.entries, &cp)
	t.mu.Unlock()
	return nil
}

func (t *MemoryTrail) ForTarget(ctx context.Context, targetID string, limit int) ([]*domain.AuditEntry, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []*domain.AuditEntry
	for i := len(t.entries) - 1; i >= 0; i-- {
		if t.entries[i].TargetID != targetID {
			continue
		}
		cp := *t.entries[i]
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (t *MemoryTrail) LastActor(ctx context.Context, targetID string, actions []string) (string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for i := len(t.entries) - 1; i >= 0; i-- {
		e := t.entries[i]
		if e.TargetID == targetID && e.Success && contains(actions, e.Action) {
			return e.ActorID, nil
		}
	}
	return "", nil
}

// Len returns the number of entries.
func (t *MemoryTrail) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
