package memory

import (
	"context"

	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain/entity"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain/repository"
)

var _ repository.DocumentRepository = (*DocumentRepo)(nil)

// DocumentRepo implementa repository.DocumentRepository en memoria.
type DocumentRepo struct {
	db *DB
	tx *txLog // nil fuera de RunSubmission
}

// Create guarda el comprobante. ErrDuplicate si el id o la serie-número ya existen en la tienda.
func (r *DocumentRepo) Create(_ context.Context, doc *entity.ElectronicDocument) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.docs[doc.ID]; ok {
		return domain.ErrDuplicate
	}
	for _, d := range r.db.docs {
		if d.StoreID == doc.StoreID && d.Series == doc.Series && d.Number == doc.Number {
			return domain.ErrDuplicate
		}
	}
	r.tx.saveDoc(r.db, doc.ID)
	r.db.docs[doc.ID] = cloneDocument(*doc)
	return nil
}

// GetByID devuelve nil, nil si no existe.
func (r *DocumentRepo) GetByID(_ context.Context, id string) (*entity.ElectronicDocument, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	d, ok := r.db.docs[id]
	if !ok {
		return nil, nil
	}
	out := cloneDocument(d)
	return &out, nil
}

// UpdateSubmission persiste el resultado del envío si el estado sigue siendo expected.
func (r *DocumentRepo) UpdateSubmission(_ context.Context, doc *entity.ElectronicDocument, expected entity.DocumentStatus) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cur, ok := r.db.docs[doc.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if cur.Status != expected {
		return domain.ErrConflict
	}
	r.tx.saveDoc(r.db, doc.ID)
	cur.Status = doc.Status
	cur.AckContainer = cloneBytes(doc.AckContainer)
	cur.RemoteCode = doc.RemoteCode
	cur.RemoteMessage = doc.RemoteMessage
	cur.RemoteTicket = doc.RemoteTicket
	cur.RemoteRespondedAt = cloneTime(doc.RemoteRespondedAt)
	cur.UpdatedAt = doc.UpdatedAt
	r.db.docs[doc.ID] = cur
	return nil
}

func cloneDocument(d entity.ElectronicDocument) entity.ElectronicDocument {
	d.SignedBody = cloneBytes(d.SignedBody)
	d.AckContainer = cloneBytes(d.AckContainer)
	d.RemoteRespondedAt = cloneTime(d.RemoteRespondedAt)
	return d
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
