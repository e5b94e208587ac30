package memory

import (
	"context"

	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain/entity"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain/repository"
)

var _ repository.AuditRepository = (*AuditRepo)(nil)

// AuditRepo implementa repository.AuditRepository en memoria (append-only).
type AuditRepo struct {
	db *DB
}

// Append agrega el evento.
func (r *AuditRepo) Append(_ context.Context, ev *entity.AuditEvent) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.audit = append(r.db.audit, *ev)
	return nil
}

// ListByDocument eventos del documento en orden de registro.
func (r *AuditRepo) ListByDocument(_ context.Context, documentID string) ([]*entity.AuditEvent, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make([]*entity.AuditEvent, 0)
	for i := range r.db.audit {
		if r.db.audit[i].DocumentID == documentID {
			ev := r.db.audit[i]
			out = append(out, &ev)
		}
	}
	return out, nil
}
