package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain/entity"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain/repository"
)

var _ repository.JobRepository = (*JobRepo)(nil)

// JobRepo implementación de JobRepository. Claim y Release son compare-and-set sobre la fila:
// el UPDATE solo afecta filas que siguen como se leyeron.
type JobRepo struct {
	q Querier
}

// NewJobRepository construye el adaptador. Pasar pool o tx (Querier).
func NewJobRepository(q Querier) *JobRepo {
	return &JobRepo{q: q}
}

const jobColumns = `id, document_id, store_id, job_type, status, attempts, last_error,
	next_run_at, lease_owner, lease_expires_at, created_at, updated_at, completed_at`

// Create inserta el job. El índice parcial submission_jobs_one_active rechaza un segundo
// job activo del mismo documento.
func (r *JobRepo) Create(ctx context.Context, job *entity.SubmissionJob) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	query := `INSERT INTO submission_jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := r.q.Exec(ctx, query,
		job.ID, job.DocumentID, job.StoreID, string(job.JobType), string(job.Status), job.Attempts,
		nullIfEmpty(job.LastError), job.NextRunAt, nullIfEmpty(job.LeaseOwner), job.LeaseExpiresAt,
		job.CreatedAt, job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("job activo para documento %s: %w", job.DocumentID, domain.ErrDuplicate)
		}
		return fmt.Errorf("insert submission_job: %w", err)
	}
	return nil
}

// GetByID devuelve nil, nil si no existe.
func (r *JobRepo) GetByID(ctx context.Context, id string) (*entity.SubmissionJob, error) {
	row := r.q.QueryRow(ctx, `SELECT `+jobColumns+` FROM submission_jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get submission_job: %w", err)
	}
	return job, nil
}

// GetLatestByDocument devuelve el job más reciente del documento (nil, nil si no hay).
func (r *JobRepo) GetLatestByDocument(ctx context.Context, documentID string) (*entity.SubmissionJob, error) {
	query := `SELECT ` + jobColumns + ` FROM submission_jobs
		WHERE document_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1`
	job, err := scanJob(r.q.QueryRow(ctx, query, documentID))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get latest submission_job: %w", err)
	}
	return job, nil
}

// ListByDocument historial paginado del documento, más reciente primero.
func (r *JobRepo) ListByDocument(ctx context.Context, documentID string, limit, offset int) ([]*entity.SubmissionJob, int, error) {
	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM submission_jobs WHERE document_id = $1`, documentID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count submission_jobs: %w", err)
	}
	query := `SELECT ` + jobColumns + ` FROM submission_jobs
		WHERE document_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`
	rows, err := r.q.Query(ctx, query, documentID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list submission_jobs: %w", err)
	}
	defer rows.Close()

	list := make([]*entity.SubmissionJob, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan submission_job: %w", err)
		}
		list = append(list, job)
	}
	return list, total, rows.Err()
}

// ListClaimable lista QUEUED vencidos y CLAIMED con lease expirado, por next_run_at.
func (r *JobRepo) ListClaimable(ctx context.Context, now time.Time, limit int) ([]*entity.SubmissionJob, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + jobColumns + ` FROM submission_jobs
		WHERE (status = 'QUEUED' AND next_run_at <= $1)
		   OR (status = 'CLAIMED' AND (lease_expires_at IS NULL OR lease_expires_at < $1))
		ORDER BY next_run_at, created_at
		LIMIT $2`
	rows, err := r.q.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list claimable submission_jobs: %w", err)
	}
	defer rows.Close()

	var list []*entity.SubmissionJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission_job: %w", err)
		}
		list = append(list, job)
	}
	return list, rows.Err()
}

// Claim toma el lease si (status, lease_owner, lease_expires_at) siguen como en job y el
// job sigue siendo elegible en now. false sin error = otro worker lo tomó antes.
func (r *JobRepo) Claim(ctx context.Context, job *entity.SubmissionJob, owner string, now, leaseUntil time.Time) (bool, error) {
	query := `
		UPDATE submission_jobs
		SET status = 'CLAIMED', lease_owner = $2, lease_expires_at = $3, updated_at = $4
		WHERE id = $1
		  AND status = $5
		  AND lease_owner IS NOT DISTINCT FROM $6
		  AND lease_expires_at IS NOT DISTINCT FROM $7
		  AND ((status = 'QUEUED' AND next_run_at <= $4)
		    OR (status = 'CLAIMED' AND (lease_expires_at IS NULL OR lease_expires_at < $4)))
		RETURNING ` + jobColumns
	claimed, err := scanJob(r.q.QueryRow(ctx, query,
		job.ID, owner, leaseUntil, now,
		string(job.Status), nullIfEmpty(job.LeaseOwner), job.LeaseExpiresAt,
	))
	if err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("claim submission_job: %w", err)
	}
	*job = *claimed
	return true, nil
}

// Release persiste el resultado y limpia el lease si owner sigue siendo dueño.
func (r *JobRepo) Release(ctx context.Context, job *entity.SubmissionJob, owner string) error {
	if job.Status == entity.JobStatusClaimed || !entity.JobStatusClaimed.CanTransitionTo(job.Status) {
		return domain.ErrInvalidTransition
	}
	query := `
		UPDATE submission_jobs
		SET status = $3, attempts = $4, last_error = $5, next_run_at = $6,
		    lease_owner = NULL, lease_expires_at = NULL, updated_at = $7, completed_at = $8
		WHERE id = $1 AND status = 'CLAIMED' AND lease_owner = $2`
	tag, err := r.q.Exec(ctx, query,
		job.ID, owner, string(job.Status), job.Attempts, nullIfEmpty(job.LastError),
		job.NextRunAt, job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("release submission_job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrLeaseLost
	}
	job.ClearLease()
	return nil
}

// DeleteFinishedBefore purga jobs terminados (DONE/FAILED) antes de before.
func (r *JobRepo) DeleteFinishedBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.q.Exec(ctx, `
		DELETE FROM submission_jobs
		WHERE status IN ('DONE', 'FAILED') AND completed_at IS NOT NULL AND completed_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("purge submission_jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanJob(row pgx.Row) (*entity.SubmissionJob, error) {
	var (
		j                entity.SubmissionJob
		jobType, status  string
		lastError, owner *string
	)
	if err := row.Scan(
		&j.ID, &j.DocumentID, &j.StoreID, &jobType, &status, &j.Attempts, &lastError,
		&j.NextRunAt, &owner, &j.LeaseExpiresAt, &j.CreatedAt, &j.UpdatedAt, &j.CompletedAt,
	); err != nil {
		return nil, err
	}
	j.JobType = entity.JobType(jobType)
	j.Status = entity.JobStatus(status)
	j.LastError = stringOrEmpty(lastError)
	j.LeaseOwner = stringOrEmpty(owner)
	j.NextRunAt = j.NextRunAt.UTC()
	j.LeaseExpiresAt = utcPtr(j.LeaseExpiresAt)
	j.CreatedAt = j.CreatedAt.UTC()
	j.UpdatedAt = j.UpdatedAt.UTC()
	j.CompletedAt = utcPtr(j.CompletedAt)
	return &j, nil
}
