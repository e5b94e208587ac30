package entity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DocumentStatus estado del comprobante electrónico frente a SUNAT.
type DocumentStatus string

// Estados del comprobante. DRAFT y PENDING pertenecen al generador de XML;
// SIGNED lo fija el firmante; el resto es propiedad exclusiva del pipeline de envío.
const (
	DocumentStatusDraft    DocumentStatus = "DRAFT"    // Reservado el correlativo
	DocumentStatusPending  DocumentStatus = "PENDING"  // XML en generación
	DocumentStatusSigned   DocumentStatus = "SIGNED"   // XML firmado, listo para encolar
	DocumentStatusSent     DocumentStatus = "SENT"     // SUNAT recibió el ZIP (CDR o ticket pendiente)
	DocumentStatusAccepted DocumentStatus = "ACCEPTED" // CDR con código 0 u observaciones
	DocumentStatusRejected DocumentStatus = "REJECTED" // CDR de rechazo (2000-3999)
	DocumentStatusError    DocumentStatus = "ERROR"    // Reintentos agotados o fallo técnico fatal
)

var documentTransitions = map[DocumentStatus][]DocumentStatus{
	DocumentStatusDraft:   {DocumentStatusPending},
	DocumentStatusPending: {DocumentStatusSigned},
	DocumentStatusSigned:  {DocumentStatusSent, DocumentStatusError},
	DocumentStatusSent:    {DocumentStatusAccepted, DocumentStatusRejected, DocumentStatusError},
}

// CanTransitionTo indica si la máquina de estados permite pasar de s a next.
// Los reintentos manuales (ERROR/REJECTED → SIGNED) no pasan por aquí: ver Rearm.
func (s DocumentStatus) CanTransitionTo(next DocumentStatus) bool {
	for _, allowed := range documentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal true para ACCEPTED, REJECTED y ERROR.
func (s DocumentStatus) IsTerminal() bool {
	return s == DocumentStatusAccepted || s == DocumentStatusRejected || s == DocumentStatusError
}

// DocType tipo de comprobante.
type DocType string

const (
	DocTypeInvoiceA   DocType = "INVOICE_A"   // Factura
	DocTypeInvoiceB   DocType = "INVOICE_B"   // Boleta de venta
	DocTypeCreditNote DocType = "CREDIT_NOTE" // Nota de crédito
	DocTypeDebitNote  DocType = "DEBIT_NOTE"  // Nota de débito
)

// SunatCode devuelve el código de catálogo 01 SUNAT (01, 03, 07, 08). Vacío si el tipo no es válido.
func (t DocType) SunatCode() string {
	switch t {
	case DocTypeInvoiceA:
		return "01"
	case DocTypeInvoiceB:
		return "03"
	case DocTypeCreditNote:
		return "07"
	case DocTypeDebitNote:
		return "08"
	}
	return ""
}

// ElectronicDocument comprobante electrónico (factura, boleta o nota).
// Los montos y datos del cliente se congelan al firmar y nunca se recalculan.
type ElectronicDocument struct {
	ID      string
	StoreID string
	DocType DocType
	Series  string // ej. F001, B001
	Number  int64

	CustomerDocType   string // catálogo 06 (1=DNI, 6=RUC...)
	CustomerDocNumber string
	CustomerName      string
	Currency          string // PEN, USD
	NetTotal          decimal.Decimal
	TaxTotal          decimal.Decimal
	GrandTotal        decimal.Decimal

	SignedBody   []byte // XML firmado (opaco para el pipeline)
	Hash         string // DigestValue de la firma
	AckContainer []byte // ZIP del CDR devuelto por SUNAT

	RemoteCode        string
	RemoteMessage     string
	RemoteTicket      string // ticket de sendSummary / envío asíncrono
	RemoteRespondedAt *time.Time

	Status    DocumentStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FullNumber serie-número (ej. F001-123), único por tienda y serie.
func (d *ElectronicDocument) FullNumber() string {
	return fmt.Sprintf("%s-%d", d.Series, d.Number)
}

// Rearm devuelve un documento en ERROR o REJECTED a SIGNED para un reintento manual,
// limpiando el resultado remoto anterior.
func (d *ElectronicDocument) Rearm(now time.Time) {
	d.Status = DocumentStatusSigned
	d.RemoteCode = ""
	d.RemoteMessage = ""
	d.RemoteTicket = ""
	d.RemoteRespondedAt = nil
	d.AckContainer = nil
	d.UpdatedAt = now
}
