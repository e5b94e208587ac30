package billing

import (
	"context"

	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain/entity"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain/repository"
)

// SubmissionTxRunner ejecuta fn dentro de una transacción que incluye comprobantes y jobs.
// El resultado de un intento (documento + job) se persiste siempre en una sola transacción.
type SubmissionTxRunner interface {
	RunSubmission(ctx context.Context, fn func(
		docRepo repository.DocumentRepository,
		jobRepo repository.JobRepository,
	) error) error
}

// AuditRecorder recibe un evento por cada transición del pipeline. Un error al auditar
// se registra en log pero nunca revierte la transición.
type AuditRecorder interface {
	Record(ctx context.Context, ev *entity.AuditEvent) error
}

// ArtifactStore archiva el ZIP enviado y el CDR recibido (opcional; nil lo desactiva).
type ArtifactStore interface {
	PutArtifacts(ctx context.Context, doc *entity.ElectronicDocument, ruc, zipName string, archive, ack []byte) error
}

// NopAuditRecorder descarta los eventos.
type NopAuditRecorder struct{}

// Record no hace nada.
func (NopAuditRecorder) Record(context.Context, *entity.AuditEvent) error { return nil }
