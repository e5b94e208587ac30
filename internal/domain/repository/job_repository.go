package repository

import (
	"context"
	"time"

	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain/entity"
)

// JobRepository define el puerto de persistencia de SubmissionJob con semántica de lease.
// Toda mutación de un job está condicionada al estado leído previamente (compare-and-set).
type JobRepository interface {
	// Create inserta un job QUEUED. domain.ErrDuplicate si el documento ya tiene un job activo.
	Create(ctx context.Context, job *entity.SubmissionJob) error
	GetByID(ctx context.Context, id string) (*entity.SubmissionJob, error)
	// GetLatestByDocument devuelve el job más reciente del documento (nil, nil si no hay).
	GetLatestByDocument(ctx context.Context, documentID string) (*entity.SubmissionJob, error)
	// ListByDocument historial de jobs del documento, más reciente primero, y el total.
	ListByDocument(ctx context.Context, documentID string, limit, offset int) ([]*entity.SubmissionJob, int, error)
	// ListClaimable lista jobs QUEUED con next_run_at <= now o CLAIMED con lease vencido,
	// ordenados por next_run_at.
	ListClaimable(ctx context.Context, now time.Time, limit int) ([]*entity.SubmissionJob, error)
	// Claim marca el job como CLAIMED por owner hasta leaseUntil si la fila sigue igual a la
	// leída (status, lease_owner, lease_expires_at). false sin error = carrera perdida.
	// En éxito actualiza job en memoria.
	Claim(ctx context.Context, job *entity.SubmissionJob, owner string, now, leaseUntil time.Time) (bool, error)
	// Release persiste el resultado del job (QUEUED/DONE/FAILED) y limpia el lease, solo si
	// owner sigue siendo dueño del lease. domain.ErrLeaseLost en caso contrario.
	Release(ctx context.Context, job *entity.SubmissionJob, owner string) error
	// DeleteFinishedBefore elimina jobs DONE/FAILED completados antes de before.
	DeleteFinishedBefore(ctx context.Context, before time.Time) (int64, error)
}
