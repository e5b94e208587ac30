package sunat

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain/entity"
)

// ErrUnsignedDocument el XML no trae ds:Signature: el pipeline solo acepta comprobantes firmados.
var ErrUnsignedDocument = errors.New("ubl: comprobante sin firma digital")

// SignedDocumentInfo cabecera de un comprobante UBL 2.1 firmado.
type SignedDocumentInfo struct {
	DocType           entity.DocType
	Series            string
	Number            int64
	SupplierRUC       string
	CustomerDocType   string
	CustomerDocNumber string
	CustomerName      string
	Currency          string
	NetTotal          decimal.Decimal
	TaxTotal          decimal.Decimal
	GrandTotal        decimal.Decimal
	Hash              string // ds:DigestValue
}

// ReadSignedDocument lee la cabecera de una factura, boleta o nota firmada.
// Se usa al importar comprobantes firmados por el POS; el cuerpo se guarda sin tocar.
func ReadSignedDocument(body []byte) (*SignedDocumentInfo, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = charsetReader
	if err := doc.ReadFromBytes(body); err != nil {
		return nil, fmt.Errorf("ubl: parsear XML: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("ubl: documento vacío")
	}

	info := &SignedDocumentInfo{}
	switch root.Tag {
	case "Invoice":
		switch text(root, "InvoiceTypeCode") {
		case "01":
			info.DocType = entity.DocTypeInvoiceA
		case "03":
			info.DocType = entity.DocTypeInvoiceB
		default:
			return nil, fmt.Errorf("ubl: InvoiceTypeCode no soportado %q", text(root, "InvoiceTypeCode"))
		}
	case "CreditNote":
		info.DocType = entity.DocTypeCreditNote
	case "DebitNote":
		info.DocType = entity.DocTypeDebitNote
	default:
		return nil, fmt.Errorf("ubl: raíz no soportada %q", root.Tag)
	}

	id := text(root, "ID")
	series, number, ok := strings.Cut(id, "-")
	if !ok {
		return nil, fmt.Errorf("ubl: cbc:ID inválido %q (esperado SERIE-NUMERO)", id)
	}
	n, err := strconv.ParseInt(number, 10, 64)
	if err != nil || n <= 0 {
		return nil, fmt.Errorf("ubl: correlativo inválido %q", number)
	}
	info.Series, info.Number = series, n

	info.SupplierRUC = text(root, "AccountingSupplierParty/Party/PartyIdentification/ID")
	if el := root.FindElement("AccountingCustomerParty/Party/PartyIdentification/ID"); el != nil {
		info.CustomerDocNumber = strings.TrimSpace(el.Text())
		info.CustomerDocType = el.SelectAttrValue("schemeID", "")
	}
	info.CustomerName = text(root, "AccountingCustomerParty/Party/PartyLegalEntity/RegistrationName")
	info.Currency = text(root, "DocumentCurrencyCode")

	monetary := "LegalMonetaryTotal"
	if info.DocType == entity.DocTypeDebitNote {
		monetary = "RequestedMonetaryTotal"
	}
	if info.GrandTotal, err = amount(root, monetary+"/PayableAmount"); err != nil {
		return nil, err
	}
	if info.NetTotal, err = amount(root, monetary+"/LineExtensionAmount"); err != nil {
		return nil, err
	}
	if info.TaxTotal, err = amount(root, "TaxTotal/TaxAmount"); err != nil {
		return nil, err
	}

	sig := root.FindElement(".//Signature")
	if sig == nil {
		return nil, ErrUnsignedDocument
	}
	info.Hash = text(sig, ".//DigestValue")
	return info, nil
}

func text(el *etree.Element, path string) string {
	if found := el.FindElement(path); found != nil {
		return strings.TrimSpace(found.Text())
	}
	return ""
}

func amount(el *etree.Element, path string) (decimal.Decimal, error) {
	raw := text(el, path)
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ubl: monto inválido en %s: %w", path, err)
	}
	return d, nil
}
