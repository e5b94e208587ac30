package memory

import (
	"context"
	"sort"
	"time"

	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain/entity"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain/repository"
)

var _ repository.JobRepository = (*JobRepo)(nil)

// JobRepo implementa repository.JobRepository en memoria con la misma semántica
// compare-and-set que el repositorio PostgreSQL.
type JobRepo struct {
	db *DB
	tx *txLog // nil fuera de RunSubmission
}

// Create inserta el job. ErrDuplicate si el documento ya tiene un job activo.
func (r *JobRepo) Create(_ context.Context, job *entity.SubmissionJob) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.jobs[job.ID]; ok {
		return domain.ErrDuplicate
	}
	for _, j := range r.db.jobs {
		if j.DocumentID == job.DocumentID && j.Status.IsActive() {
			return domain.ErrDuplicate
		}
	}
	r.tx.saveJob(r.db, job.ID)
	r.db.seq++
	r.db.order[job.ID] = r.db.seq
	r.db.jobs[job.ID] = cloneJob(*job)
	return nil
}

// GetByID devuelve nil, nil si no existe.
func (r *JobRepo) GetByID(_ context.Context, id string) (*entity.SubmissionJob, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	j, ok := r.db.jobs[id]
	if !ok {
		return nil, nil
	}
	out := cloneJob(j)
	return &out, nil
}

// GetLatestByDocument devuelve el último job creado para el documento.
func (r *JobRepo) GetLatestByDocument(_ context.Context, documentID string) (*entity.SubmissionJob, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var latest *entity.SubmissionJob
	var latestSeq int64
	for id, j := range r.db.jobs {
		if j.DocumentID != documentID {
			continue
		}
		if seq := r.db.order[id]; latest == nil || seq > latestSeq {
			cp := cloneJob(j)
			latest, latestSeq = &cp, seq
		}
	}
	return latest, nil
}

// ListByDocument jobs del documento por orden de creación descendente.
func (r *JobRepo) ListByDocument(_ context.Context, documentID string, limit, offset int) ([]*entity.SubmissionJob, int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	all := make([]*entity.SubmissionJob, 0)
	for _, j := range r.db.jobs {
		if j.DocumentID == documentID {
			cp := cloneJob(j)
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(a, b int) bool {
		return r.db.order[all[a].ID] > r.db.order[all[b].ID]
	})
	total := len(all)
	if offset >= total {
		return []*entity.SubmissionJob{}, total, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, total, nil
}

// ListClaimable jobs elegibles ordenados por next_run_at.
func (r *JobRepo) ListClaimable(_ context.Context, now time.Time, limit int) ([]*entity.SubmissionJob, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make([]*entity.SubmissionJob, 0)
	for _, j := range r.db.jobs {
		if j.Claimable(now) {
			cp := cloneJob(j)
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].NextRunAt.Equal(out[b].NextRunAt) {
			return r.db.order[out[a].ID] < r.db.order[out[b].ID]
		}
		return out[a].NextRunAt.Before(out[b].NextRunAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Claim compare-and-set sobre (status, lease_owner, lease_expires_at) leídos en job.
func (r *JobRepo) Claim(_ context.Context, job *entity.SubmissionJob, owner string, now, leaseUntil time.Time) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cur, ok := r.db.jobs[job.ID]
	if !ok {
		return false, nil
	}
	if cur.Status != job.Status || cur.LeaseOwner != job.LeaseOwner || !sameTime(cur.LeaseExpiresAt, job.LeaseExpiresAt) {
		return false, nil
	}
	if !cur.Claimable(now) {
		return false, nil
	}
	r.tx.saveJob(r.db, job.ID)
	cur.Status = entity.JobStatusClaimed
	cur.LeaseOwner = owner
	cur.LeaseExpiresAt = &leaseUntil
	cur.UpdatedAt = now
	r.db.jobs[job.ID] = cloneJob(cur)
	*job = cloneJob(cur)
	return true, nil
}

// Release persiste el resultado y limpia el lease si owner sigue siendo el dueño.
func (r *JobRepo) Release(_ context.Context, job *entity.SubmissionJob, owner string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cur, ok := r.db.jobs[job.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if cur.Status != entity.JobStatusClaimed || cur.LeaseOwner != owner {
		return domain.ErrLeaseLost
	}
	if !entity.JobStatusClaimed.CanTransitionTo(job.Status) || job.Status == entity.JobStatusClaimed {
		return domain.ErrInvalidTransition
	}
	r.tx.saveJob(r.db, job.ID)
	job.ClearLease()
	r.db.jobs[job.ID] = cloneJob(*job)
	return nil
}

// DeleteFinishedBefore elimina jobs DONE/FAILED completados antes de before.
func (r *JobRepo) DeleteFinishedBefore(_ context.Context, before time.Time) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for id, j := range r.db.jobs {
		if j.Status.IsActive() || j.CompletedAt == nil || !j.CompletedAt.Before(before) {
			continue
		}
		r.tx.saveJob(r.db, id)
		delete(r.db.jobs, id)
		delete(r.db.order, id)
		n++
	}
	return n, nil
}

func cloneJob(j entity.SubmissionJob) entity.SubmissionJob {
	j.LeaseExpiresAt = cloneTime(j.LeaseExpiresAt)
	j.CompletedAt = cloneTime(j.CompletedAt)
	return j
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
