package sunat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/beevik/etree"
	"github.com/rs/xid"

	pkgsunat "github.com/Cristhianmcc/marketPOS-sub004/pkg/sunat"
)

// DevSubmitter simula el billService en modo dev: no hace llamadas de red y
// responde siempre con un CDR de aceptación (código 0). Los tickets se resuelven
// en la primera consulta.
type DevSubmitter struct {
	mu      sync.Mutex
	tickets map[string]string // ticket → nombre del ZIP enviado
}

// NewDevSubmitter construye el simulador.
func NewDevSubmitter() *DevSubmitter {
	return &DevSubmitter{tickets: make(map[string]string)}
}

// Submit responde inmediatamente con un CDR de aceptación.
func (d *DevSubmitter) Submit(_ context.Context, _ Credentials, zipName string, _ []byte) (*SubmitResult, error) {
	ack, err := NewCDRArchive(zipName, referenceFromZip(zipName), "0", "[DEV] comprobante aceptado (simulado)")
	if err != nil {
		return nil, err
	}
	return &SubmitResult{Ack: ack}, nil
}

// SubmitBatch devuelve un ticket simulado.
func (d *DevSubmitter) SubmitBatch(_ context.Context, _ Credentials, zipName string, _ []byte) (string, error) {
	ticket := "DEV-" + xid.New().String()
	d.mu.Lock()
	d.tickets[ticket] = zipName
	d.mu.Unlock()
	return ticket, nil
}

// PollTicket resuelve el ticket con un CDR de aceptación.
func (d *DevSubmitter) PollTicket(_ context.Context, _ Credentials, ticket string) (*PollResult, error) {
	d.mu.Lock()
	zipName, ok := d.tickets[ticket]
	delete(d.tickets, ticket)
	d.mu.Unlock()
	if !ok {
		return nil, &RemoteFault{Op: opGetStatus, Code: "0127", Message: "El ticket no existe"}
	}
	ack, err := NewCDRArchive(zipName, referenceFromZip(zipName), "0", "[DEV] resumen aceptado (simulado)")
	if err != nil {
		return nil, err
	}
	return &PollResult{StatusCode: pkgsunat.TicketStatusProcessed, Ack: ack}, nil
}

// NewCDRArchive construye un CDR (ApplicationResponse UBL 2.0) empaquetado como lo
// devuelve SUNAT: R-{zipName} con una entrada R-{base}.xml.
func NewCDRArchive(zipName, referenceID, code, description string, notes ...string) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("ar:ApplicationResponse")
	root.CreateAttr("xmlns:ar", "urn:oasis:names:specification:ubl:schema:xsd:ApplicationResponse-2")
	root.CreateAttr("xmlns:cac", "urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2")
	root.CreateAttr("xmlns:cbc", "urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2")

	now := time.Now().UTC()
	root.CreateElement("cbc:UBLVersionID").SetText("2.0")
	root.CreateElement("cbc:ID").SetText(now.Format("20060102150405"))
	root.CreateElement("cbc:IssueDate").SetText(now.Format("2006-01-02"))
	for _, n := range notes {
		root.CreateElement("cbc:Note").SetText(n)
	}

	docResp := root.CreateElement("cac:DocumentResponse")
	resp := docResp.CreateElement("cac:Response")
	resp.CreateElement("cbc:ReferenceID").SetText(referenceID)
	resp.CreateElement("cbc:ResponseCode").SetText(code)
	resp.CreateElement("cbc:Description").SetText(description)
	docResp.CreateElement("cac:DocumentReference").CreateElement("cbc:ID").SetText(referenceID)

	xmlBytes, err := doc.WriteToBytes()
	if err != nil {
		return nil, err
	}
	base := strings.TrimSuffix(zipName, ".zip")
	return BuildArchive(xmlBytes, "R-"+base+".xml")
}

// referenceFromZip "20100066603-01-F001-123.zip" → "F001-123".
func referenceFromZip(zipName string) string {
	parts := strings.Split(strings.TrimSuffix(zipName, ".zip"), "-")
	if len(parts) < 4 {
		return strings.TrimSuffix(zipName, ".zip")
	}
	return strings.Join(parts[len(parts)-2:], "-")
}
