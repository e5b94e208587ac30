package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain/entity"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain/repository"
)

var _ repository.DocumentRepository = (*DocumentRepo)(nil)

// DocumentRepo implementación de DocumentRepository (usable con pool o tx).
type DocumentRepo struct {
	q Querier
}

// NewDocumentRepository construye el adaptador. Pasar pool o tx (Querier).
func NewDocumentRepository(q Querier) *DocumentRepo {
	return &DocumentRepo{q: q}
}

const documentColumns = `id, store_id, doc_type, series, number,
	customer_doc_type, customer_doc_number, customer_name, currency,
	net_total, tax_total, grand_total, signed_body, hash, ack_container,
	remote_code, remote_message, remote_ticket, remote_responded_at,
	status, created_at, updated_at`

// Create persiste el comprobante (lo usa el firmante y los seeds).
func (r *DocumentRepo) Create(ctx context.Context, doc *entity.ElectronicDocument) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	query := `INSERT INTO electronic_documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`
	_, err := r.q.Exec(ctx, query,
		doc.ID, doc.StoreID, string(doc.DocType), doc.Series, doc.Number,
		doc.CustomerDocType, doc.CustomerDocNumber, doc.CustomerName, doc.Currency,
		doc.NetTotal, doc.TaxTotal, doc.GrandTotal, doc.SignedBody, nullIfEmpty(doc.Hash), doc.AckContainer,
		nullIfEmpty(doc.RemoteCode), nullIfEmpty(doc.RemoteMessage), nullIfEmpty(doc.RemoteTicket), doc.RemoteRespondedAt,
		string(doc.Status), doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("comprobante %s ya existe: %w", doc.FullNumber(), domain.ErrDuplicate)
		}
		return fmt.Errorf("insert electronic_document: %w", err)
	}
	return nil
}

// GetByID devuelve nil, nil si no existe.
func (r *DocumentRepo) GetByID(ctx context.Context, id string) (*entity.ElectronicDocument, error) {
	query := `SELECT ` + documentColumns + ` FROM electronic_documents WHERE id = $1`
	var (
		d                                   entity.ElectronicDocument
		docType, status                     string
		hash, remoteCode, remoteMsg, ticket *string
	)
	err := r.q.QueryRow(ctx, query, id).Scan(
		&d.ID, &d.StoreID, &docType, &d.Series, &d.Number,
		&d.CustomerDocType, &d.CustomerDocNumber, &d.CustomerName, &d.Currency,
		&d.NetTotal, &d.TaxTotal, &d.GrandTotal, &d.SignedBody, &hash, &d.AckContainer,
		&remoteCode, &remoteMsg, &ticket, &d.RemoteRespondedAt,
		&status, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get electronic_document: %w", err)
	}
	d.DocType = entity.DocType(docType)
	d.Status = entity.DocumentStatus(status)
	d.Hash = stringOrEmpty(hash)
	d.RemoteCode = stringOrEmpty(remoteCode)
	d.RemoteMessage = stringOrEmpty(remoteMsg)
	d.RemoteTicket = stringOrEmpty(ticket)
	d.RemoteRespondedAt = utcPtr(d.RemoteRespondedAt)
	d.CreatedAt = d.CreatedAt.UTC()
	d.UpdatedAt = d.UpdatedAt.UTC()
	return &d, nil
}

// UpdateSubmission actualiza estado y resultado remoto solo si el estado persistido sigue
// siendo expected. El contenido firmado no se toca.
func (r *DocumentRepo) UpdateSubmission(ctx context.Context, doc *entity.ElectronicDocument, expected entity.DocumentStatus) error {
	query := `
		UPDATE electronic_documents
		SET status              = $2,
		    ack_container       = $3,
		    remote_code         = $4,
		    remote_message      = $5,
		    remote_ticket       = $6,
		    remote_responded_at = $7,
		    updated_at          = $8
		WHERE id = $1 AND status = $9`
	tag, err := r.q.Exec(ctx, query,
		doc.ID, string(doc.Status), doc.AckContainer,
		nullIfEmpty(doc.RemoteCode), nullIfEmpty(doc.RemoteMessage), nullIfEmpty(doc.RemoteTicket),
		doc.RemoteRespondedAt, doc.UpdatedAt, string(expected),
	)
	if err != nil {
		return fmt.Errorf("update electronic_document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM electronic_documents WHERE id = $1)`, doc.ID).Scan(&exists); err != nil {
			return fmt.Errorf("check electronic_document: %w", err)
		}
		if !exists {
			return domain.ErrNotFound
		}
		return domain.ErrConflict
	}
	return nil
}
