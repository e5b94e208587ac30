package sunat

import (
	"context"
	"fmt"
	"strconv"

	pkgsunat "github.com/Cristhianmcc/marketPOS-sub004/pkg/sunat"
)

// ── Constantes de entorno ──────────────────────────────────────────────────────

const (
	// AppEnvTest ambiente beta (homologación) e-beta.sunat.gob.pe.
	AppEnvTest = "test"
	// AppEnvProd ambiente de producción e-factura.sunat.gob.pe.
	AppEnvProd = "prod"
	// AppEnvDev identificador local: no envía a SUNAT, simula la respuesta.
	AppEnvDev = "dev"
)

// ── Puerto (interfaz) ──────────────────────────────────────────────────────────

// Credentials usuario y clave SOL para el UsernameToken WS-Security.
type Credentials struct {
	Username string // RUC + usuario secundario SOL
	Password string
}

// String evita que la clave termine en logs por un %v accidental.
func (c Credentials) String() string {
	return c.Username + ":***"
}

// SubmitResult resultado de sendBill: CDR inmediato o ticket para consulta posterior.
type SubmitResult struct {
	Ack    []byte // ZIP del CDR (applicationResponse decodificado)
	Ticket string
}

// PollResult resultado de getStatus.
type PollResult struct {
	StatusCode string // 0, 98, 99
	Processing bool   // true mientras SUNAT siga procesando (98)
	Ack        []byte // ZIP del CDR cuando el ticket terminó
}

// Submitter define el puerto de salida hacia el billService de SUNAT.
// La implementación concreta usa SOAP; en dev se inyecta DevSubmitter.
type Submitter interface {
	// Submit envía un comprobante (sendBill). Devuelve el CDR o, para tipos asíncronos, un ticket.
	Submit(ctx context.Context, creds Credentials, zipName string, archive []byte) (*SubmitResult, error)
	// SubmitBatch envía un resumen o lote (sendSummary). Siempre devuelve ticket.
	SubmitBatch(ctx context.Context, creds Credentials, zipName string, archive []byte) (string, error)
	// PollTicket consulta el estado de un ticket (getStatus).
	PollTicket(ctx context.Context, creds Credentials, ticket string) (*PollResult, error)
}

// ── Errores ───────────────────────────────────────────────────────────────────

// TransportError fallo de transporte: red, timeout, HTTP sin fault, cuerpo ilegible.
// Siempre se reintenta con backoff.
type TransportError struct {
	Op         string
	StatusCode int // HTTP; 0 si no hubo respuesta
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("sunat %s: HTTP %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("sunat %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RemoteFault SUNAT respondió explícitamente con un error (SOAP Fault o statusCode).
// Si se reintenta o no depende del código (tabla de códigos).
type RemoteFault struct {
	Op      string
	Code    string
	Message string
}

func (e *RemoteFault) Error() string {
	return fmt.Sprintf("sunat %s: fault %s: %s", e.Op, e.Code, e.Message)
}

// NumericCode true si el código del fault es numérico (código de la tabla SUNAT).
func (e *RemoteFault) NumericCode() bool {
	_, err := strconv.Atoi(e.Code)
	return err == nil
}

// NewSubmitter construye el Submitter según el ambiente. endpoint vacío usa el oficial.
func NewSubmitter(appEnv, endpoint string, opts ...ClientOption) (Submitter, error) {
	switch appEnv {
	case AppEnvDev, "":
		return NewDevSubmitter(), nil
	case AppEnvTest:
		if endpoint == "" {
			endpoint = pkgsunat.EndpointBeta
		}
	case AppEnvProd:
		if endpoint == "" {
			endpoint = pkgsunat.EndpointProduction
		}
	default:
		return nil, fmt.Errorf("sunat: SUNAT_APP_ENV desconocido %q (usar dev|test|prod)", appEnv)
	}
	return NewSOAPClient(endpoint, opts...), nil
}
