package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain/entity"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain/repository"
)

var _ repository.AuditRepository = (*AuditRepo)(nil)

// AuditRepo tabla append-only submission_audit.
type AuditRepo struct {
	q Querier
}

// NewAuditRepository construye el adaptador. Pasar pool o tx (Querier).
func NewAuditRepository(q Querier) *AuditRepo {
	return &AuditRepo{q: q}
}

// Append inserta el evento.
func (r *AuditRepo) Append(ctx context.Context, ev *entity.AuditEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	query := `
		INSERT INTO submission_audit (id, event_type, document_id, job_id, store_id, actor, attempt, remote_code, message, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.q.Exec(ctx, query,
		ev.ID, string(ev.Type), ev.DocumentID, nullIfEmpty(ev.JobID), nullIfEmpty(ev.StoreID),
		nullIfEmpty(ev.Actor), ev.Attempt, nullIfEmpty(ev.RemoteCode), nullIfEmpty(ev.Message), ev.At,
	)
	if err != nil {
		return fmt.Errorf("insert submission_audit: %w", err)
	}
	return nil
}

// ListByDocument eventos del documento en orden cronológico.
func (r *AuditRepo) ListByDocument(ctx context.Context, documentID string) ([]*entity.AuditEvent, error) {
	query := `
		SELECT id, event_type, document_id, job_id, store_id, actor, attempt, remote_code, message, at
		FROM submission_audit WHERE document_id = $1 ORDER BY at, id`
	rows, err := r.q.Query(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("list submission_audit: %w", err)
	}
	defer rows.Close()

	var list []*entity.AuditEvent
	for rows.Next() {
		var (
			ev                                   entity.AuditEvent
			typ                                  string
			jobID, storeID, actor, code, message *string
		)
		if err := rows.Scan(&ev.ID, &typ, &ev.DocumentID, &jobID, &storeID, &actor, &ev.Attempt, &code, &message, &ev.At); err != nil {
			return nil, fmt.Errorf("scan submission_audit: %w", err)
		}
		ev.Type = entity.AuditEventType(typ)
		ev.JobID = stringOrEmpty(jobID)
		ev.StoreID = stringOrEmpty(storeID)
		ev.Actor = stringOrEmpty(actor)
		ev.RemoteCode = stringOrEmpty(code)
		ev.Message = stringOrEmpty(message)
		ev.At = ev.At.UTC()
		list = append(list, &ev)
	}
	return list, rows.Err()
}
