package billing

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain/entity"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain/repository"
	infrasunat "github.com/Cristhianmcc/marketPOS-sub004/internal/infrastructure/sunat"
	"github.com/Cristhianmcc/marketPOS-sub004/pkg/clock"
)

// ImportUseCase registra comprobantes ya firmados fuera del pipeline (POS offline,
// migraciones) como documentos SIGNED listos para encolar.
type ImportUseCase struct {
	docRepo   repository.DocumentRepository
	storeRepo repository.StoreRepository
	clock     clock.Clock
	log       zerolog.Logger
}

// NewImportUseCase construye el caso de uso.
func NewImportUseCase(docRepo repository.DocumentRepository, storeRepo repository.StoreRepository, clk clock.Clock, log zerolog.Logger) *ImportUseCase {
	return &ImportUseCase{
		docRepo:   docRepo,
		storeRepo: storeRepo,
		clock:     clk,
		log:       log.With().Str("component", "import").Logger(),
	}
}

// Import lee la cabecera del XML firmado y crea el documento en SIGNED.
// El RUC emisor del XML debe coincidir con el de la tienda.
func (uc *ImportUseCase) Import(ctx context.Context, storeID string, body []byte) (*entity.ElectronicDocument, error) {
	store, err := uc.storeRepo.GetByID(ctx, storeID)
	if err != nil {
		return nil, fmt.Errorf("consultar tienda: %w", err)
	}
	if store == nil {
		return nil, domain.ErrNotFound
	}
	info, err := infrasunat.ReadSignedDocument(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if info.SupplierRUC != store.RUC {
		return nil, fmt.Errorf("%w: RUC emisor %s no corresponde a la tienda %s", domain.ErrInvalidInput, info.SupplierRUC, store.RUC)
	}

	now := uc.clock.Now()
	currency := strings.ToUpper(info.Currency)
	if currency == "" {
		currency = "PEN"
	}
	doc := &entity.ElectronicDocument{
		ID:                uuid.New().String(),
		StoreID:           store.ID,
		DocType:           info.DocType,
		Series:            info.Series,
		Number:            info.Number,
		CustomerDocType:   info.CustomerDocType,
		CustomerDocNumber: info.CustomerDocNumber,
		CustomerName:      info.CustomerName,
		Currency:          currency,
		NetTotal:          info.NetTotal,
		TaxTotal:          info.TaxTotal,
		GrandTotal:        info.GrandTotal,
		SignedBody:        append([]byte(nil), body...),
		Hash:              info.Hash,
		Status:            entity.DocumentStatusSigned,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := uc.docRepo.Create(ctx, doc); err != nil {
		return nil, err
	}
	uc.log.Info().
		Str("document_id", doc.ID).
		Str("store_id", store.ID).
		Str("number", doc.FullNumber()).
		Msg("comprobante firmado importado")
	return doc, nil
}
