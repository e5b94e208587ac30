// Package audit implementa los destinos de los eventos de auditoría del pipeline:
// log estructurado, tabla de auditoría y fan-out entre varios destinos.
package audit

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/Cristhianmcc/marketPOS-sub004/internal/application/billing"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain/entity"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain/repository"
)

var (
	_ billing.AuditRecorder = (*LogRecorder)(nil)
	_ billing.AuditRecorder = (*RepositoryRecorder)(nil)
	_ billing.AuditRecorder = (Multi)(nil)
)

// LogRecorder escribe cada evento como una línea de log estructurada.
type LogRecorder struct {
	log zerolog.Logger
}

// NewLogRecorder construye el recorder sobre el logger dado.
func NewLogRecorder(log zerolog.Logger) *LogRecorder {
	return &LogRecorder{log: log.With().Str("component", "audit").Logger()}
}

// Record registra el evento.
func (r *LogRecorder) Record(_ context.Context, ev *entity.AuditEvent) error {
	e := r.log.Info().
		Str("event", string(ev.Type)).
		Str("document_id", ev.DocumentID).
		Str("job_id", ev.JobID).
		Str("store_id", ev.StoreID).
		Str("actor", ev.Actor).
		Int("attempt", ev.Attempt).
		Time("at", ev.At)
	if ev.RemoteCode != "" {
		e = e.Str("remote_code", ev.RemoteCode)
	}
	if ev.Message != "" {
		e = e.Str("message", ev.Message)
	}
	e.Msg("auditoría sunat")
	return nil
}

// RepositoryRecorder persiste los eventos en un AuditRepository.
type RepositoryRecorder struct {
	repo repository.AuditRepository
}

// NewRepositoryRecorder construye el recorder.
func NewRepositoryRecorder(repo repository.AuditRepository) *RepositoryRecorder {
	return &RepositoryRecorder{repo: repo}
}

// Record agrega el evento al repositorio.
func (r *RepositoryRecorder) Record(ctx context.Context, ev *entity.AuditEvent) error {
	return r.repo.Append(ctx, ev)
}

// Multi reparte cada evento entre varios recorders. Un destino que falla no impide
// que los demás reciban el evento.
type Multi []billing.AuditRecorder

// Record entrega el evento a todos los destinos y une los errores.
func (m Multi) Record(ctx context.Context, ev *entity.AuditEvent) error {
	var errs []error
	for _, rec := range m {
		if rec == nil {
			continue
		}
		if err := rec.Record(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
