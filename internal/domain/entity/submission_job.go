package entity

import "time"

// JobStatus estado de un job de envío.
type JobStatus string

const (
	JobStatusQueued  JobStatus = "QUEUED"
	JobStatusClaimed JobStatus = "CLAIMED"
	JobStatusDone    JobStatus = "DONE"
	JobStatusFailed  JobStatus = "FAILED"
)

var jobTransitions = map[JobStatus][]JobStatus{
	JobStatusQueued:  {JobStatusClaimed},
	JobStatusClaimed: {JobStatusClaimed, JobStatusQueued, JobStatusDone, JobStatusFailed},
}

// CanTransitionTo indica si la transición está permitida. CLAIMED → CLAIMED corresponde
// a reclamar un lease vencido.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	for _, allowed := range jobTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsActive true mientras el job ocupa el slot único del documento.
func (s JobStatus) IsActive() bool {
	return s == JobStatusQueued || s == JobStatusClaimed
}

// JobType tipo de trabajo de envío.
type JobType string

const (
	JobTypeSendDocument JobType = "SEND_DOCUMENT" // sendBill (síncrono salvo tipos asíncronos)
	JobTypeSendSummary  JobType = "SEND_SUMMARY"  // sendSummary + getStatus por ticket
)

// Valid true si el tipo es conocido.
func (t JobType) Valid() bool {
	return t == JobTypeSendDocument || t == JobTypeSendSummary
}

// SubmissionJob unidad de trabajo de envío de un único comprobante.
// LeaseOwner + LeaseExpiresAt forman el lock; un lease vencido equivale a no reclamado.
type SubmissionJob struct {
	ID             string
	DocumentID     string
	StoreID        string
	JobType        JobType
	Status         JobStatus
	Attempts       int
	LastError      string // saneado, nunca contiene credenciales
	NextRunAt      time.Time
	LeaseOwner     string
	LeaseExpiresAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CompletedAt    *time.Time
}

// Claimable indica si el job puede reclamarse en now.
func (j *SubmissionJob) Claimable(now time.Time) bool {
	switch j.Status {
	case JobStatusQueued:
		return !now.Before(j.NextRunAt)
	case JobStatusClaimed:
		return j.LeaseExpiresAt == nil || j.LeaseExpiresAt.Before(now)
	}
	return false
}

// ClearLease libera el lock del job.
func (j *SubmissionJob) ClearLease() {
	j.LeaseOwner = ""
	j.LeaseExpiresAt = nil
}
