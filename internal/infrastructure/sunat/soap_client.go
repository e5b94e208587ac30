package sunat

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	pkgsunat "github.com/Cristhianmcc/marketPOS-sub004/pkg/sunat"
)

const (
	soapNS     = "http://schemas.xmlsoap.org/soap/envelope/"
	soapNSSer  = "http://service.sunat.gob.pe"
	soapNSWsse = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd"

	opSendBill    = "sendBill"
	opSendSummary = "sendSummary"
	opGetStatus   = "getStatus"

	maxResponseSize = 10 << 20 // 10 MB: el CDR viaja en base64 dentro del sobre
)

// ── Implementación SOAP ────────────────────────────────────────────────────────

// SOAPClient implementa Submitter sobre el billService SOAP de SUNAT.
// Usa net/http y encoding/xml de la stdlib.
type SOAPClient struct {
	endpoint   string
	httpClient *http.Client
	log        zerolog.Logger
}

// ClientOption configura el SOAPClient.
type ClientOption func(*SOAPClient)

// WithHTTPClient reemplaza el http.Client (tests, proxies, mTLS).
func WithHTTPClient(c *http.Client) ClientOption {
	return func(s *SOAPClient) { s.httpClient = c }
}

// WithTimeout fija el timeout de red por llamada.
func WithTimeout(d time.Duration) ClientOption {
	return func(s *SOAPClient) {
		if d > 0 {
			s.httpClient.Timeout = d
		}
	}
}

// WithLogger inyecta el logger.
func WithLogger(l zerolog.Logger) ClientOption {
	return func(s *SOAPClient) { s.log = l }
}

// NewSOAPClient construye el cliente con un timeout de red generoso (60 s)
// ya que el billService puede tardar varios segundos en responder.
func NewSOAPClient(endpoint string, opts ...ClientOption) *SOAPClient {
	c := &SOAPClient{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ── Estructuras SOAP ──────────────────────────────────────────────────────────

type soapEnvelope struct {
	XMLName   xml.Name   `xml:"soapenv:Envelope"`
	XmlnsS    string     `xml:"xmlns:soapenv,attr"`
	XmlnsSer  string     `xml:"xmlns:ser,attr"`
	XmlnsWsse string     `xml:"xmlns:wsse,attr"`
	Header    soapHeader `xml:"soapenv:Header"`
	Body      soapBody   `xml:"soapenv:Body"`
}

type soapHeader struct {
	Security wsseSecurity `xml:"wsse:Security"`
}

type wsseSecurity struct {
	UsernameToken wsseUsernameToken `xml:"wsse:UsernameToken"`
}

type wsseUsernameToken struct {
	Username string `xml:"wsse:Username"`
	Password string `xml:"wsse:Password"`
}

type soapBody struct {
	Content interface{}
}

func (b soapBody) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name.Local = "soapenv:Body"
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if err := e.Encode(b.Content); err != nil {
		return err
	}
	return e.EncodeToken(start.End())
}

// sendBillBody cuerpo de sendBill (comprobante individual).
type sendBillBody struct {
	XMLName     xml.Name `xml:"ser:sendBill"`
	FileName    string   `xml:"fileName"`
	ContentFile string   `xml:"contentFile"` // ZIP en Base64
}

// sendSummaryBody cuerpo de sendSummary (resumen diario / comunicación de baja).
type sendSummaryBody struct {
	XMLName     xml.Name `xml:"ser:sendSummary"`
	FileName    string   `xml:"fileName"`
	ContentFile string   `xml:"contentFile"`
}

// getStatusBody cuerpo de getStatus.
type getStatusBody struct {
	XMLName xml.Name `xml:"ser:getStatus"`
	Ticket  string   `xml:"ticket"`
}

// ── Estructuras de respuesta SOAP ─────────────────────────────────────────────

type soapResponseEnvelope struct {
	Body soapResponseBody `xml:"Body"`
}

type soapResponseBody struct {
	SendBill    *sendBillResponse    `xml:"sendBillResponse"`
	SendSummary *sendSummaryResponse `xml:"sendSummaryResponse"`
	GetStatus   *getStatusResponse   `xml:"getStatusResponse"`
	Fault       *soapFault           `xml:"Fault"`
}

type sendBillResponse struct {
	ApplicationResponse string `xml:"applicationResponse"`
	Ticket              string `xml:"ticket"`
}

type sendSummaryResponse struct {
	Ticket string `xml:"ticket"`
}

type getStatusResponse struct {
	Status struct {
		StatusCode string `xml:"statusCode"`
		Content    string `xml:"content"`
	} `xml:"status"`
}

type soapFault struct {
	FaultCode   string `xml:"faultcode"`
	FaultString string `xml:"faultstring"`
}

// ── Operaciones ───────────────────────────────────────────────────────────────

// Submit envía el ZIP con sendBill.
func (c *SOAPClient) Submit(ctx context.Context, creds Credentials, zipName string, archive []byte) (*SubmitResult, error) {
	body := &sendBillBody{FileName: zipName, ContentFile: base64.StdEncoding.EncodeToString(archive)}
	resp, err := c.call(ctx, opSendBill, creds, body)
	if err != nil {
		return nil, err
	}
	if resp.SendBill == nil {
		return nil, &TransportError{Op: opSendBill, Err: errors.New("respuesta SOAP vacía o inesperada")}
	}
	if t := strings.TrimSpace(resp.SendBill.Ticket); t != "" {
		return &SubmitResult{Ticket: t}, nil
	}
	ack, err := decodeContent(resp.SendBill.ApplicationResponse)
	if err != nil {
		return nil, &TransportError{Op: opSendBill, Err: fmt.Errorf("applicationResponse: %w", err)}
	}
	return &SubmitResult{Ack: ack}, nil
}

// SubmitBatch envía el ZIP con sendSummary y devuelve el ticket.
func (c *SOAPClient) SubmitBatch(ctx context.Context, creds Credentials, zipName string, archive []byte) (string, error) {
	body := &sendSummaryBody{FileName: zipName, ContentFile: base64.StdEncoding.EncodeToString(archive)}
	resp, err := c.call(ctx, opSendSummary, creds, body)
	if err != nil {
		return "", err
	}
	if resp.SendSummary == nil || strings.TrimSpace(resp.SendSummary.Ticket) == "" {
		return "", &TransportError{Op: opSendSummary, Err: errors.New("respuesta sin ticket")}
	}
	return strings.TrimSpace(resp.SendSummary.Ticket), nil
}

// PollTicket consulta getStatus. 98 = en proceso; 0 y 99 traen el CDR en content.
func (c *SOAPClient) PollTicket(ctx context.Context, creds Credentials, ticket string) (*PollResult, error) {
	resp, err := c.call(ctx, opGetStatus, creds, &getStatusBody{Ticket: ticket})
	if err != nil {
		return nil, err
	}
	if resp.GetStatus == nil {
		return nil, &TransportError{Op: opGetStatus, Err: errors.New("respuesta SOAP vacía o inesperada")}
	}
	status := resp.GetStatus.Status
	code := strings.TrimSpace(status.StatusCode)
	switch code {
	case pkgsunat.TicketStatusInProgress:
		return &PollResult{StatusCode: code, Processing: true}, nil
	case pkgsunat.TicketStatusProcessed, pkgsunat.TicketStatusWithErrors:
		if strings.TrimSpace(status.Content) == "" {
			if code == pkgsunat.TicketStatusProcessed {
				return nil, &TransportError{Op: opGetStatus, Err: errors.New("ticket procesado sin CDR")}
			}
			return nil, &RemoteFault{Op: opGetStatus, Code: code, Message: "ticket procesado con errores sin CDR"}
		}
		ack, err := decodeContent(status.Content)
		if err != nil {
			return nil, &TransportError{Op: opGetStatus, Err: fmt.Errorf("content: %w", err)}
		}
		return &PollResult{StatusCode: code, Ack: ack}, nil
	default:
		// getStatus devuelve excepciones (ej. 0127 ticket no existe) en statusCode.
		return nil, &RemoteFault{Op: opGetStatus, Code: code, Message: "getStatus devolvió " + code}
	}
}

// call serializa el sobre, lo envía y desempaqueta la respuesta o el fault.
func (c *SOAPClient) call(ctx context.Context, op string, creds Credentials, body interface{}) (*soapResponseBody, error) {
	envelope := soapEnvelope{
		XmlnsS:    soapNS,
		XmlnsSer:  soapNSSer,
		XmlnsWsse: soapNSWsse,
		Header: soapHeader{Security: wsseSecurity{UsernameToken: wsseUsernameToken{
			Username: creds.Username,
			Password: creds.Password,
		}}},
		Body: soapBody{Content: body},
	}
	payload, err := xml.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("soap: serializar envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("soap: crear request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", "urn:"+op)

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &TransportError{Op: op, Err: fmt.Errorf("timeout o cancelación: %w", ctx.Err())}
		}
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("leer respuesta: %w", err)}
	}
	c.log.Debug().
		Str("op", op).
		Int("http_status", resp.StatusCode).
		Int("bytes", len(raw)).
		Dur("elapsed", time.Since(started)).
		Msg("respuesta billService")

	var env soapResponseEnvelope
	if err := xml.Unmarshal(raw, &env); err != nil {
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("respuesta no es SOAP: %w", err)}
	}
	// SOAP Fault (autenticación, validación, sistema no disponible...).
	if env.Body.Fault != nil {
		code, msg := faultCode(env.Body.Fault)
		return nil, &RemoteFault{Op: op, Code: code, Message: msg}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode, Err: errors.New("HTTP sin SOAP Fault")}
	}
	return &env.Body, nil
}

// faultCode extrae el código numérico SUNAT del fault. SUNAT lo envía como
// "soap-env:Client.0102" o directamente en faultstring ("0109").
func faultCode(f *soapFault) (code, msg string) {
	fc := strings.TrimSpace(f.FaultCode)
	fs := strings.TrimSpace(f.FaultString)
	if idx := strings.LastIndex(fc, "."); idx != -1 && isDigits(fc[idx+1:]) {
		return fc[idx+1:], fs
	}
	if isDigits(fs) {
		return fs, fs
	}
	if idx := strings.LastIndex(fc, ":"); idx != -1 {
		fc = fc[idx+1:]
	}
	return fc, fs
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func decodeContent(b64 string) ([]byte, error) {
	b64 = strings.Join(strings.Fields(b64), "")
	if b64 == "" {
		return nil, errors.New("contenido vacío")
	}
	return base64.StdEncoding.DecodeString(b64)
}
