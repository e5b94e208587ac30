package billing_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cristhianmcc/marketPOS-sub004/internal/application/billing"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/application/dto"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain/entity"
)

const importedInvoice = `<?xml version="1.0" encoding="UTF-8"?>
<Invoice xmlns="urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"
  xmlns:cac="urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2"
  xmlns:cbc="urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2"
  xmlns:ds="http://www.w3.org/2000/09/xmldsig#">
  <ds:Signature><ds:SignedInfo><ds:Reference><ds:DigestValue>zz=</ds:DigestValue></ds:Reference></ds:SignedInfo></ds:Signature>
  <cbc:ID>F001-77</cbc:ID>
  <cbc:InvoiceTypeCode>01</cbc:InvoiceTypeCode>
  <cbc:DocumentCurrencyCode>pen</cbc:DocumentCurrencyCode>
  <cac:AccountingSupplierParty><cac:Party><cac:PartyIdentification><cbc:ID schemeID="6">20100066603</cbc:ID></cac:PartyIdentification></cac:Party></cac:AccountingSupplierParty>
  <cac:TaxTotal><cbc:TaxAmount>18.00</cbc:TaxAmount></cac:TaxTotal>
  <cac:LegalMonetaryTotal><cbc:LineExtensionAmount>100.00</cbc:LineExtensionAmount><cbc:PayableAmount>118.00</cbc:PayableAmount></cac:LegalMonetaryTotal>
</Invoice>`

func TestImport_CreaDocumentoFirmadoEncolable(t *testing.T) {
	f := newFixture(t, billing.ProcessorConfig{})
	uc := billing.NewImportUseCase(f.db.Documents(), f.db.Stores(), f.clk, zerolog.Nop())
	ctx := context.Background()

	doc, err := uc.Import(ctx, testStoreID, []byte(importedInvoice))
	require.NoError(t, err)
	assert.Equal(t, entity.DocumentStatusSigned, doc.Status)
	assert.Equal(t, "F001-77", doc.FullNumber())
	assert.Equal(t, "PEN", doc.Currency)
	assert.Equal(t, "zz=", doc.Hash)
	assert.Equal(t, importedInvoice, string(doc.SignedBody))

	resp, err := f.uc.Enqueue(ctx, testStoreID, doc.ID, "cli", dto.EnqueueSubmissionRequest{})
	require.NoError(t, err)
	assert.Equal(t, dto.SignalQueued, resp.Signal)

	// El mismo correlativo no se importa dos veces.
	_, err = uc.Import(ctx, testStoreID, []byte(importedInvoice))
	assert.True(t, errors.Is(err, domain.ErrDuplicate))
}

func TestImport_Rechazos(t *testing.T) {
	f := newFixture(t, billing.ProcessorConfig{})
	uc := billing.NewImportUseCase(f.db.Documents(), f.db.Stores(), f.clk, zerolog.Nop())
	ctx := context.Background()

	_, err := uc.Import(ctx, "store-x", []byte(importedInvoice))
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	otherRUC := strings.Replace(importedInvoice, "20100066603", "20123456786", 1)
	_, err = uc.Import(ctx, testStoreID, []byte(otherRUC))
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	_, err = uc.Import(ctx, testStoreID, []byte("<Invoice/>"))
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}
