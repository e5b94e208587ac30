package entity

import "time"

// AuditEventType tipo de evento de auditoría del pipeline de envío.
type AuditEventType string

const (
	AuditQueued         AuditEventType = "queued"
	AuditClaimed        AuditEventType = "claimed"
	AuditAccepted       AuditEventType = "accepted"
	AuditRejected       AuditEventType = "rejected"
	AuditRetryScheduled AuditEventType = "retry-scheduled"
	AuditFailedTerminal AuditEventType = "failed-terminal"
	AuditRetryRequested AuditEventType = "retry-requested"
)

// AuditEvent registro de una transición. Solo identificadores y códigos:
// jamás credenciales, certificados ni contenido del comprobante.
type AuditEvent struct {
	ID         string
	Type       AuditEventType
	DocumentID string
	JobID      string
	StoreID    string
	Actor      string // user id (API) o token del worker
	Attempt    int
	RemoteCode string
	Message    string // saneado
	At         time.Time
}
