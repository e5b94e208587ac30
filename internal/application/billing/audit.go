package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain/entity"
)

// NewAuditEvent arma un evento para el job. Solo identificadores y códigos.
func NewAuditEvent(typ entity.AuditEventType, job *entity.SubmissionJob, actor string, attempt int, code, msg string, at time.Time) *entity.AuditEvent {
	return &entity.AuditEvent{
		ID:         uuid.New().String(),
		Type:       typ,
		DocumentID: job.DocumentID,
		JobID:      job.ID,
		StoreID:    job.StoreID,
		Actor:      actor,
		Attempt:    attempt,
		RemoteCode: code,
		Message:    msg,
		At:         at,
	}
}

// Audit entrega el evento al recorder. Los errores solo se registran en log.
func Audit(ctx context.Context, rec AuditRecorder, log zerolog.Logger, ev *entity.AuditEvent) {
	if rec == nil {
		return
	}
	if err := rec.Record(ctx, ev); err != nil {
		log.Warn().Err(err).
			Str("event", string(ev.Type)).
			Str("job_id", ev.JobID).
			Msg("no se pudo registrar evento de auditoría")
	}
}
