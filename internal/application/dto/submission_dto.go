package dto

import "time"

// Señales de Enqueue. Las tres son respuestas exitosas.
const (
	SignalQueued        = "QUEUED"
	SignalAlreadyQueued = "ALREADY_QUEUED"
	SignalAlreadyDone   = "ALREADY_DONE"
)

// EnqueueSubmissionRequest body para POST /api/documents/:id/submission.
// JobType vacío equivale a SEND_DOCUMENT.
type EnqueueSubmissionRequest struct {
	JobType string `json:"job_type,omitempty"`
}

// SubmissionResponse respuesta de encolar o reintentar.
type SubmissionResponse struct {
	JobID      string    `json:"job_id"`
	DocumentID string    `json:"document_id"`
	Status     string    `json:"status"`
	Signal     string    `json:"signal"`
	NextRunAt  time.Time `json:"next_run_at"`
}

// SubmissionJobResponse último job del documento en GET /api/documents/:id/submission.
type SubmissionJobResponse struct {
	ID          string     `json:"id"`
	JobType     string     `json:"job_type"`
	Status      string     `json:"status"`
	Attempts    int        `json:"attempts"`
	NextRunAt   time.Time  `json:"next_run_at"`
	LastError   string     `json:"last_error,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// SubmissionJobListResponse historial de jobs del comprobante, del más reciente al más antiguo.
type SubmissionJobListResponse struct {
	Items []SubmissionJobResponse `json:"items"`
	Page  PageResponse            `json:"page"`
}

// SubmissionStatusResponse estado del comprobante frente a SUNAT.
type SubmissionStatusResponse struct {
	DocumentID        string                 `json:"document_id"`
	FullNumber        string                 `json:"full_number"`
	Status            string                 `json:"status"`
	RemoteCode        string                 `json:"remote_code,omitempty"`
	RemoteMessage     string                 `json:"remote_message,omitempty"`
	RemoteTicket      string                 `json:"remote_ticket,omitempty"`
	RemoteRespondedAt *time.Time             `json:"remote_responded_at,omitempty"`
	HasAck            bool                   `json:"has_cdr"`
	Job               *SubmissionJobResponse `json:"job,omitempty"`
}
