package repository

import (
	"context"

	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain/entity"
)

// DocumentRepository define el puerto de persistencia para comprobantes electrónicos.
type DocumentRepository interface {
	Create(ctx context.Context, doc *entity.ElectronicDocument) error
	// GetByID devuelve nil, nil si no existe.
	GetByID(ctx context.Context, id string) (*entity.ElectronicDocument, error)
	// UpdateSubmission persiste estado, ticket, CDR y resultado remoto, condicionado a que el
	// documento siga en expected. Devuelve domain.ErrConflict si otro proceso lo cambió.
	UpdateSubmission(ctx context.Context, doc *entity.ElectronicDocument, expected entity.DocumentStatus) error
}
