package repository

import (
	"context"

	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain/entity"
)

// AuditRepository persistencia append-only de eventos de auditoría.
type AuditRepository interface {
	Append(ctx context.Context, ev *entity.AuditEvent) error
	ListByDocument(ctx context.Context, documentID string) ([]*entity.AuditEvent, error)
}
